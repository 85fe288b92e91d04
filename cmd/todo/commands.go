package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sideo/internal/retention"
	"sideo/internal/storage"
)

var addImportant bool

var addCmd = &cobra.Command{
	Use:   "add <title>...",
	Short: "Add a task to the end of the list",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		title := strings.Join(args, " ")
		t, err := a.repo.AddTask(ctx, title, addImportant)
		if err != nil {
			return err
		}
		if t.ID == 0 {
			return fmt.Errorf("title cannot be empty")
		}
		fmt.Fprintf(a.out(), "added #%d %s\n", t.ID, t.Title)
		return nil
	}),
}

var listCmd = &cobra.Command{
	Use:       "list [active|archive|trash]",
	Short:     "Print tasks",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"active", "archive", "trash"},
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		view := "active"
		if len(args) == 1 {
			view = args[0]
		}
		switch view {
		case "archive":
			sections, err := a.repo.Sections(ctx)
			if err != nil {
				return err
			}
			printSections(a.out(), sections)
		case "trash":
			tasks, err := a.repo.RecentlyDeleted(ctx)
			if err != nil {
				return err
			}
			now := a.repo.Now()
			for _, t := range tasks {
				fmt.Fprintf(a.out(), "#%d %s (%s left)\n", t.ID, t.Title, retention.TimeLeft(t, now).Round(time.Second))
			}
		default:
			tasks, err := a.repo.ActiveTasks(ctx)
			if err != nil {
				return err
			}
			for i, t := range tasks {
				fmt.Fprintf(a.out(), "%d. %s (#%d)\n", i+1, label(t), t.ID)
			}
		}
		return nil
	}),
}

var doneCmd = taskCommand("done <id>", "Mark a task completed", func(ctx context.Context, a *app, t storage.Task) error {
	return a.repo.SetCompleted(ctx, t.ID, true)
})

var undoneCmd = taskCommand("undone <id>", "Move a completed task back to the list", func(ctx context.Context, a *app, t storage.Task) error {
	return a.repo.SetCompleted(ctx, t.ID, false)
})

var importantCmd = taskCommand("important <id>", "Mark a task important and move it to the top", func(ctx context.Context, a *app, t storage.Task) error {
	return a.repo.PromoteImportant(ctx, t.ID)
})

var unimportantCmd = taskCommand("unimportant <id>", "Clear the important flag", func(ctx context.Context, a *app, t storage.Task) error {
	return a.repo.SetImportant(ctx, t.ID, false)
})

var deleteCmd = taskCommand("delete <id>", "Move a task to the trash", func(ctx context.Context, a *app, t storage.Task) error {
	return a.repo.SoftDelete(ctx, t.ID)
})

var restoreCmd = taskCommand("restore <id>", "Restore a task from the trash", func(ctx context.Context, a *app, t storage.Task) error {
	if !t.Deleted {
		return fmt.Errorf("task %d is not in the trash", t.ID)
	}
	return a.repo.Restore(ctx, t.ID)
})

var purgeCmd = taskCommand("purge <id>", "Permanently delete a task from the trash", func(ctx context.Context, a *app, t storage.Task) error {
	if !t.Deleted {
		return fmt.Errorf("task %d is not in the trash", t.ID)
	}
	return a.repo.HardDelete(ctx, t.ID)
})

var renameCmd = &cobra.Command{
	Use:   "rename <id> <title>...",
	Short: "Change a task's title",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		t, err := a.task(ctx, args[0])
		if err != nil {
			return err
		}
		title := strings.Join(args[1:], " ")
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("title cannot be empty")
		}
		return a.repo.Rename(ctx, t.ID, title)
	}),
}

var moveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move an active task between list positions (1-based)",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[1])
		}
		active, err := a.repo.ActiveTasks(ctx)
		if err != nil {
			return err
		}
		if from < 1 || to < 1 || from > len(active) || to > len(active) {
			return fmt.Errorf("position out of range (1-%d)", len(active))
		}
		return a.repo.Move(ctx, from-1, to-1)
	}),
}

func init() {
	addCmd.Flags().BoolVarP(&addImportant, "important", "i", false, "mark the task important")
	rootCmd.AddCommand(addCmd, listCmd, doneCmd, undoneCmd, importantCmd, unimportantCmd,
		renameCmd, deleteCmd, restoreCmd, purgeCmd, moveCmd)
}

// taskCommand builds a command that acts on one existing task by id.
func taskCommand(use, short string, fn func(context.Context, *app, storage.Task) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			t, err := a.task(ctx, args[0])
			if err != nil {
				return err
			}
			return fn(ctx, a, t)
		}),
	}
}

func (a *app) task(ctx context.Context, arg string) (storage.Task, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil {
		return storage.Task{}, fmt.Errorf("invalid task id %q", arg)
	}
	t, ok, err := a.repo.Get(ctx, id)
	if err != nil {
		return storage.Task{}, err
	}
	if !ok {
		return storage.Task{}, fmt.Errorf("task %d not found", id)
	}
	return t, nil
}

func (a *app) out() io.Writer {
	return rootCmd.OutOrStdout()
}

func label(t storage.Task) string {
	if t.Important {
		return "! " + t.Title
	}
	return t.Title
}

func printSections(w io.Writer, sections []retention.Section) {
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, s.Title)
		for _, t := range s.Tasks {
			fmt.Fprintf(w, "  %s (#%d)\n", label(t), t.ID)
		}
	}
}
