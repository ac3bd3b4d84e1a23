package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chhz0/tasklist/core"
	"github.com/chhz0/tasklist/types"
)

var errBlankText = errors.New("task text cannot be blank")

func (a *app) addCmd() *cobra.Command {
	var priority, due string
	cmd := &cobra.Command{
		Use:   "add <text...>",
		Short: "Add a task to the end of the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errBlankText
			}
			task, err := a.store.Add(cmd.Context(), text, types.Priority(priority), due)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Added task %d.\n", task.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", string(types.PriorityLow), "priority (low, medium, high)")
	cmd.Flags().StringVarP(&due, "due", "d", "", "due date (YYYY-MM-DD)")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var search, status, sortMode string
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := core.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			s, err := core.ParseSortMode(sortMode)
			if err != nil {
				return err
			}
			tasks, err := a.store.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			view := core.View{Search: search, Status: f, Sort: s}.Apply(tasks)
			if asJSON {
				return writeJSON(a.stdout, view)
			}
			FormatTasks(a.stdout, view)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive text filter")
	cmd.Flags().StringVar(&status, "status", string(core.StatusAll), "status filter (all, completed, incomplete)")
	cmd.Flags().StringVar(&sortMode, "sort", string(core.SortNone), "sort mode (none, priority, dueDate)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tasks as JSON")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var text, priority, due string
	var clearDue bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's text, priority or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := a.find(cmd, id)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("text") {
				text = strings.TrimSpace(text)
				if text == "" {
					return errBlankText
				}
				task.Text = text
			}
			if flags.Changed("priority") {
				task.Priority = types.Priority(priority)
			}
			if flags.Changed("due") {
				task.DueDate = due
			}
			if clearDue {
				task.DueDate = ""
			}
			if _, err := a.store.Update(cmd.Context(), task); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Updated task %d.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "new text")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority (low, medium, high)")
	cmd.Flags().StringVarP(&due, "due", "d", "", "new due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.find(cmd, id); err != nil {
				return err
			}
			if err := a.store.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Removed task %d.\n", id)
			return nil
		},
	}
}

func (a *app) starCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "star <id>",
		Short: "Toggle a task's star",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := a.store.ToggleStarred(cmd.Context(), id)
			if err != nil {
				return err
			}
			FormatTask(a.stdout, task)
			return nil
		},
	}
}

func (a *app) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := a.store.ToggleCompleted(cmd.Context(), id)
			if err != nil {
				return err
			}
			FormatTask(a.stdout, task)
			return nil
		},
	}
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move the task at position <from> to position <to> (1-based, stored order)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			to, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			tasks, err := a.store.Move(cmd.Context(), from-1, to-1)
			if err != nil {
				return err
			}
			FormatTasks(a.stdout, tasks)
			return nil
		},
	}
}

// find 按 id 查找，不存在时返回 ErrTaskNotFound
func (a *app) find(cmd *cobra.Command, id int) (types.Task, error) {
	tasks, err := a.store.GetAll(cmd.Context())
	if err != nil {
		return types.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return types.Task{}, fmt.Errorf("%w: %d", core.ErrTaskNotFound, id)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid position %q: must be a positive number", s)
	}
	return n, nil
}
