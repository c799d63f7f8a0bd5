package lock

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/andy-ce-taylor/reslock/cmd/util"
	"github.com/andy-ce-taylor/reslock/lib/markerfs/osfs"
	"github.com/andy-ce-taylor/reslock/lib/reslock"
	"github.com/spf13/cobra"
)

// exit code reported when the lock cannot be acquired within budget
const exitLocked = 11

var (

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:   "lock",
		Short: "Operate on a filesystem lock store",
	}

	// runCmd acquires a lock, runs a command, and releases on exit
	runCmd = &cobra.Command{
		Use:   "run [resource] -- [command] [args...]",
		Short: "Run a command while holding a lock",
		Long: util.WrapString("Acquire the lock for the given resource name, run the command, " +
			"and release the lock when the command exits. If the lock cannot be acquired " +
			"within the time budget (max-pause times max-attempts), nothing is run and " +
			"the exit code is 11."),
		Args: cobra.MinimumNArgs(2),
		RunE: runRun,
	}

	// sweepCmd removes every stale marker from the lock store
	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Remove abandoned locks from the store",
		Long: util.WrapString("Enumerate the lock store and remove every marker whose age has " +
			"reached max-hold. Best effort: markers removed or recreated concurrently by " +
			"other processes are skipped silently."),
		Args: cobra.NoArgs,
		RunE: runSweep,
	}

	// lsCmd lists the markers currently in the lock store
	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "List the locks currently in the store",
		Args:  cobra.NoArgs,
		RunE:  runLs,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(runCmd)
	LockCommands.AddCommand(sweepCmd)
	LockCommands.AddCommand(lsCmd)
	LockCommands.AddCommand(perfCmd)

	// Add the shared lock-store flags to the whole group
	util.SetupLockFlags(LockCommands)
}

// newLocker binds the command's flags and constructs a locker over the
// configured store.
func newLocker(cmd *cobra.Command) (reslock.ILocker, reslock.Config, error) {
	if err := util.BindCommandFlags(cmd); err != nil {
		return nil, reslock.Config{}, err
	}
	cfg := util.GetLockConfig()
	locker, err := reslock.NewOS(cfg)
	return locker, cfg, err
}

func runRun(cmd *cobra.Command, args []string) error {
	locker, cfg, err := newLocker(cmd)
	if err != nil {
		return err
	}
	defer locker.Close()

	resource := args[0]
	h, ok := locker.Lock(resource)
	if !ok {
		fmt.Fprintf(os.Stderr, "could not acquire %q within %v\n",
			resource, cfg.MaxPause*time.Duration(cfg.MaxAttempts))
		os.Exit(exitLocked)
	}

	child := exec.Command(args[1], args[2:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	runErr := child.Run()

	locker.Unlock(h)

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		return runErr
	}
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	locker, cfg, err := newLocker(cmd)
	if err != nil {
		return err
	}
	defer locker.Close()

	fs := osfs.New()
	before, err := fs.ListDirs(cfg.StoreDir)
	if err != nil {
		return err
	}

	locker.Sweep()

	after, err := fs.ListDirs(cfg.StoreDir)
	if err != nil {
		return err
	}

	fmt.Printf("swept %s: %d markers before, %d after\n",
		cfg.StoreDir, len(before), len(after))
	return nil
}

func runLs(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	cfg := util.GetLockConfig()

	fs := osfs.New()
	if err := fs.EnsureRoot(cfg.StoreDir); err != nil {
		return err
	}
	names, err := fs.ListDirs(cfg.StoreDir)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Printf("%s: no locks held\n", cfg.StoreDir)
		return nil
	}

	fmt.Printf("%-10s %-25s %-12s %s\n", "IDENTIFIER", "CREATED", "AGE", "STATE")
	for _, name := range names {
		created, found, err := fs.CreationTime(filepath.Join(cfg.StoreDir, name))
		if err != nil || !found {
			// vanished between listing and stat
			continue
		}
		age := time.Since(created).Round(time.Millisecond)
		state := "held"
		if age >= cfg.MaxHold {
			state = "stale"
		}
		fmt.Printf("%-10s %-25s %-12s %s\n",
			name, created.Format(time.RFC3339), age, state)
	}
	return nil
}
