package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	envFile string
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "btc-perp-engine",
	Short:   "BTC perpetual futures paper-trading decision engine",
	Long:    "btc-perp-engine runs the multi-mode real-time decision engine against live market data in paper-trading mode",
	Version: "0.0.0",
}

// SetVersion injects the version from git at build time.
func SetVersion(r string) {
	if len(r) > 0 {
		RootCmd.Version = r
	}
	viper.SetDefault("service_version", RootCmd.Version)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file (default is .env)")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file (default is config.yaml)")
}

func initConfig() {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Fatalf("error loading env file %s: %v", envFile, err)
		} else {
			fmt.Println("loaded env file:", envFile)
		}
	} else {
		fmt.Println("no env file found, skipping:", envFile)
	}

	viper.SetConfigFile(cfgFile)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("cannot read config file: %s", err)
	} else {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer("__", "."))
	viper.AutomaticEnv()
}
