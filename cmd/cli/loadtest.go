package main

import (
	"fmt"
	"os"

	"github.com/mistapp/backend/internal/loadtest"
	"github.com/spf13/cobra"
)

var loadCfg = loadtest.DefaultConfig()

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Register synthetic users and drive traffic against a running API",
	Long: `Registers synthetic users through the email-code flow, then issues mixed
post, vote, comment and list traffic and prints latency percentiles.

The target server must run with AUTH_TEST_CODES=true so every verification
code equals AUTH_STATIC_CODE (pass it with --code).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Load testing %s with %d users and %d workers for %s\n",
			loadCfg.BaseURL, loadCfg.Users, loadCfg.Workers, loadCfg.Duration)

		report, err := loadtest.New(loadCfg).Run(cmd.Context())
		if err != nil {
			return err
		}
		report.Print(os.Stdout)
		return nil
	},
}

func init() {
	f := loadtestCmd.Flags()
	f.StringVar(&loadCfg.BaseURL, "api", loadCfg.BaseURL, "API server URL")
	f.IntVar(&loadCfg.Users, "users", loadCfg.Users, "Number of users to register")
	f.IntVar(&loadCfg.Workers, "workers", loadCfg.Workers, "Concurrent workers")
	f.DurationVar(&loadCfg.Duration, "duration", loadCfg.Duration, "How long to generate traffic")
	f.StringVar(&loadCfg.Code, "code", loadCfg.Code, "Static verification code the server issues")
	f.Float64Var(&loadCfg.Latitude, "lat", loadCfg.Latitude, "Latitude posts cluster around")
	f.Float64Var(&loadCfg.Longitude, "lon", loadCfg.Longitude, "Longitude posts cluster around")
	f.Float64Var(&loadCfg.RadiusKM, "radius", loadCfg.RadiusKM, "Radius in km posts scatter within")
}
