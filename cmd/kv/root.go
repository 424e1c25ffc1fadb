package kv

import (
	"github.com/ValentinKolb/dLayer/cmd/util"
	"github.com/ValentinKolb/dLayer/lib/common"
	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/ValentinKolb/dLayer/lib/session"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var (
	log = logger.GetLogger("cli")

	database db.KVDB
	root     *session.RootAdapter

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Work with an overlay chain on top of the configured database",
		PersistentPreRunE: setupStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add storage flags to the KV command
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(scanCmd)
	KeyValueCommands.AddCommand(statsCmd)
	KeyValueCommands.AddCommand(demoCmd)
	KeyValueCommands.AddCommand(runCmd)
	KeyValueCommands.AddCommand(perfTestCmd)

	for _, cmd := range KeyValueCommands.Commands() {
		withStore(cmd)
	}
}

// withStore closes the store after cmd ran, also when it failed.
// PersistentPostRunE is skipped by cobra on errors.
func withStore(cmd *cobra.Command) {
	if preRun := cmd.PreRunE; preRun != nil {
		cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
			if err := preRun(cmd, args); err != nil {
				return errors.CombineErrors(err, closeStore())
			}
			return nil
		}
	}
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				err = errors.CombineErrors(err, closeStore())
			}()
			return run(cmd, args)
		}
	}
}

// setupStore opens the configured database and wraps it in a root adapter
func setupStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetConfig()
	if err := common.InitLoggers(config); err != nil {
		return err
	}

	var err error
	database, err = config.OpenDatabase()
	if err != nil {
		return err
	}
	root = session.NewRootAdapter(database, config.RootOptions())

	log.Debugf("opened %s database: %s", config.Engine, config.String())
	return nil
}

// closeStore flushes buffered root writes and closes the database
func closeStore() error {
	if database == nil {
		return nil
	}
	err := errors.CombineErrors(root.Flush(), database.Close())
	database, root = nil, nil
	return err
}
