package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/reeflective/readline"
	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/config"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session",
	Long:  "Describe an app to generate it, then keep typing to modify it. Slash commands run, recover and switch projects.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd)
	},
}

// cancelHolder safely shares the active operation cancel func across goroutines.
type cancelHolder struct {
	mu sync.Mutex
	fn context.CancelFunc
}

func (h *cancelHolder) Set(fn context.CancelFunc) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

// Take returns and clears the current cancel func atomically.
func (h *cancelHolder) Take() context.CancelFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn := h.fn
	h.fn = nil
	return fn
}

func (h *cancelHolder) Clear() {
	h.mu.Lock()
	h.fn = nil
	h.mu.Unlock()
}

// session is the shell's state: the project being edited, if any.
type session struct {
	app     *app
	current *project
}

func runShell(cmd *cobra.Command) error {
	terminal.Banner(Version)
	terminal.ToolStatus(toolLines(config.CheckTools()))
	fmt.Println()

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.providerNames()) == 0 {
		terminal.Warning("No LLM provider configured. Run `swiftsmith keys set` or export an API key.")
		fmt.Println()
	}

	s := &session{app: a}
	if projects := a.cfg.ListProjects(); len(projects) > 0 {
		s.pickProject(projects)
	} else {
		fmt.Printf("  %sNo projects yet. Describe the app you want to build.%s\n\n", terminal.Dim, terminal.Reset)
	}

	rl := readline.NewShell()
	rl.Prompt.Primary(func() string {
		if s.current != nil {
			return terminal.Dim + s.current.AppName + terminal.Reset + " " + terminal.Prompt()
		}
		return terminal.Prompt()
	})
	rl.History.AddFromFile("swiftsmith", filepath.Join(a.cfg.Root, "shell_history"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var activeCancel cancelHolder
	go func() {
		for range sigChan {
			if cancel := activeCancel.Take(); cancel != nil {
				cancel()
				fmt.Println()
				terminal.Warning("Operation cancelled.")
			}
		}
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, io.EOF) {
			terminal.Info("Goodbye!")
			return nil
		}
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return err
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			terminal.Info("Goodbye!")
			return nil
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		activeCancel.Set(cancel)
		quit := false
		if strings.HasPrefix(input, "/") {
			quit = s.slash(ctx, input)
		} else {
			s.send(ctx, input)
		}
		activeCancel.Clear()
		cancel()
		if quit {
			terminal.Info("Goodbye!")
			return nil
		}
		fmt.Println()
	}
}

// send generates a new app, or modifies the current one.
func (s *session) send(ctx context.Context, input string) {
	a := s.app
	if s.current != nil {
		if _, err := a.modify(ctx, s.current, input, true); err != nil {
			terminal.Error(fmt.Sprintf("Modify failed: %v", err))
		}
		return
	}

	res, err := a.generate(ctx, input, "", true, false)
	if err != nil {
		terminal.Error(fmt.Sprintf("Generate failed: %v", err))
		return
	}
	dir, err := a.writeResult(res)
	if err != nil {
		terminal.Error(err.Error())
		return
	}
	p, err := loadProject(dir)
	if err != nil {
		terminal.Error(err.Error())
		return
	}
	s.current = p
	fmt.Printf("\n  %sKeep typing to change %s. /new starts another app.%s\n", terminal.Dim, p.AppName, terminal.Reset)
}

// slash handles a slash command and reports whether the shell should exit.
func (s *session) slash(ctx context.Context, input string) bool {
	parts := strings.SplitN(input, " ", 2)
	command := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch command {
	case "/quit", "/exit":
		return true

	case "/help":
		printHelp()

	case "/new":
		s.current = nil
		fmt.Printf("  %sDescribe the app you want to build.%s\n", terminal.Dim, terminal.Reset)

	case "/projects":
		projects := s.app.cfg.ListProjects()
		if len(projects) == 0 {
			terminal.Info("No projects yet. Describe the app you want to build.")
			return false
		}
		s.pickProject(projects)

	case "/run":
		if s.requireProject() {
			if err := s.app.buildAndLaunch(ctx, s.current); err != nil {
				terminal.Error(fmt.Sprintf("Run failed: %v", err))
			}
		}

	case "/recover", "/fix":
		if s.requireProject() {
			if err := s.app.recover(ctx, s.current, nil); err != nil {
				terminal.Error(fmt.Sprintf("Recover failed: %v", err))
			}
		}

	case "/info":
		if s.requireProject() {
			terminal.Detail("Project", s.current.Dir)
			terminal.Detail("Bundle ID", s.current.BundleID)
			terminal.Detail("Files", fmt.Sprint(len(s.current.Files)))
		}

	case "/history":
		if s.app.db == nil {
			terminal.Warning("History is unavailable.")
			return false
		}
		gens, err := s.app.db.RecentGenerations(ctx, 10)
		if err != nil {
			terminal.Error(err.Error())
			return false
		}
		if len(gens) == 0 {
			terminal.Info("No requests yet.")
			return false
		}
		fmt.Println(generationsTable(gens, time.Now()))

	case "/simulator":
		s.pickSimulator(ctx, arg)

	default:
		terminal.Warning(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", command))
	}
	return false
}

func (s *session) requireProject() bool {
	if s.current != nil {
		return true
	}
	terminal.Error("No project selected. Describe an app first, or pick one with /projects.")
	return false
}

// pickProject shows the project picker; "New project" clears the selection.
func (s *session) pickProject(projects []config.ProjectInfo) {
	opts := []terminal.PickerOption{{Label: "New project", Desc: "Start a new app"}}
	for _, p := range projects {
		opts = append(opts, terminal.PickerOption{Label: p.Name, Desc: "Created " + timeAgo(time.Now().Sub(p.CreatedAt))})
	}
	fmt.Printf("  %sYour projects:%s\n", terminal.Dim, terminal.Reset)
	picked := terminal.Pick("", opts, "")
	s.current = nil
	for _, p := range projects {
		if p.Name != picked {
			continue
		}
		proj, err := loadProject(p.Path)
		if err != nil {
			terminal.Error(err.Error())
			return
		}
		s.current = proj
		terminal.Success(fmt.Sprintf("Editing %s (%d files)", proj.AppName, len(proj.Files)))
		return
	}
	fmt.Printf("  %sDescribe the app you want to build.%s\n\n", terminal.Dim, terminal.Reset)
}

// pickSimulator sets the simulator used for /run for this session.
func (s *session) pickSimulator(ctx context.Context, arg string) {
	settings := &s.app.cfg.Settings
	if arg != "" {
		settings.Simulator = arg
		terminal.Success("Simulator set to " + arg)
		return
	}
	devices, err := s.app.launcher().ListSimulators(ctx)
	if err != nil {
		terminal.Error(fmt.Sprintf("Failed to list simulators: %v", err))
		return
	}
	if len(devices) == 0 {
		terminal.Error("No iPhone simulators available. Install them via Xcode.")
		return
	}
	opts := make([]terminal.PickerOption, len(devices))
	for i, d := range devices {
		opts[i] = terminal.PickerOption{Label: d.Name, Desc: d.Runtime}
	}
	if picked := terminal.Pick("Simulators", opts, settings.Simulator); picked != "" {
		settings.Simulator = picked
		terminal.Success("Simulator set to " + picked)
	}
}

func printHelp() {
	terminal.Divider()
	terminal.Header("Commands")
	for _, c := range [][2]string{
		{"/run", "Build and launch in the simulator"},
		{"/recover", "Build and fix compiler errors"},
		{"/simulator [name]", "Select simulator device"},
		{"/projects", "Switch to another project"},
		{"/new", "Start a new app"},
		{"/info", "Show project info"},
		{"/history", "Show recent requests"},
		{"/help", "Show this help"},
		{"/quit", "Exit session"},
	} {
		fmt.Printf("  %s%-18s%s%s%s\n", terminal.Bold, c[0], terminal.Reset+terminal.Dim, c[1], terminal.Reset)
	}
	fmt.Println()
	fmt.Printf("  %sType a description to build an app; with a project selected, type a change.%s\n", terminal.Dim, terminal.Reset)
	fmt.Println()
}
