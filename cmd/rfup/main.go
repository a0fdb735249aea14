package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	uploader "github.com/maskdetect/roboflow-upload"
	"github.com/maskdetect/roboflow-upload/roboflow"
)

var log = logging.Logger("rfup")

func main() {
	logging.SetLogLevel("*", "INFO")
	local := []*cli.Command{
		uploadCmd,
		checkCmd,
	}

	app := &cli.App{
		Name:           "rfup",
		Usage:          "upload a classification image dataset to Roboflow",
		Flags:          []cli.Flag{},
		Commands:       local,
		DefaultCommand: "upload",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}
}

var datasetFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "dataset-dir",
		Usage: "override the dataset root directory",
	},
	&cli.StringSliceFlag{
		Name:  "splits",
		Usage: "expected split directories",
	},
}

var uploadCmd = &cli.Command{
	Name:  "upload",
	Usage: "Verify the dataset layout, write data.yaml and upload every image",
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "progress-every",
			Usage: "print a progress line every N images",
		},
		&cli.BoolFlag{
			Name:  "manifest",
			Usage: "record per-image outcomes in upload-manifest.csv",
		},
		&cli.BoolFlag{
			Name:  "skip-verify-auth",
			Usage: "skip the authentication probe before uploading",
		},
	}, datasetFlags...),
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		cfg := loadConfig(c)
		if v := c.Int("progress-every"); v > 0 {
			cfg.ProgressEvery = v
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		client := roboflow.NewClient(cfg.APIKey)
		if !c.Bool("skip-verify-auth") {
			ws, err := client.Root(ctx)
			if err != nil {
				return xerrors.Errorf("authentication failed: %w", err)
			}
			log.Infof("authenticated, workspace: %s", ws)
		}

		var cb uploader.UploadCallback
		if c.Bool("manifest") {
			cb = uploader.CSVCallback(cfg.DatasetPath)
		} else {
			cb = uploader.LogCallback()
		}

		up := uploader.New(cfg, uploader.NewClientUploader(client, cfg.ProjectID), cb)
		// per-image failures are counted inside Run, they do not fail the command
		_, err := up.Run(ctx)
		return err
	},
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "Check configuration, dataset structure and Roboflow connectivity",
	Flags: datasetFlags,
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		cfg := loadConfig(c)
		failed := false

		fmt.Println("configuration:")
		fmt.Printf("  api key:   %s\n", cfg.MaskedKey())
		fmt.Printf("  workspace: %s\n", orNotSet(cfg.WorkspaceID))
		fmt.Printf("  project:   %s\n", orNotSet(cfg.ProjectID))
		fmt.Printf("  dataset:   %s\n", cfg.DatasetPath)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("  FAIL: %s\n", err)
			failed = true
		}

		fmt.Println("dataset structure:")
		stats, err := uploader.Verify(cfg.DatasetPath, cfg.Splits)
		if err != nil {
			fmt.Printf("  FAIL: %s\n", err)
			failed = true
		} else {
			for _, split := range cfg.Splits {
				classes := make([]string, 0, len(stats[split]))
				for class := range stats[split] {
					classes = append(classes, class)
				}
				sort.Strings(classes)
				for _, class := range classes {
					fmt.Printf("  %s/%s: %d images\n", split, class, stats[split][class])
				}
			}
			fmt.Printf("  total: %d images\n", stats.Total())
		}

		fmt.Println("connection:")
		if cfg.APIKey == "" {
			fmt.Println("  SKIP: no api key")
			failed = true
		} else {
			client := roboflow.NewClient(cfg.APIKey)
			ws, err := client.Root(ctx)
			if err != nil {
				fmt.Printf("  FAIL: %s\n", err)
				failed = true
			} else {
				fmt.Printf("  workspace: %s\n", ws)
				if cfg.WorkspaceID != "" && cfg.ProjectID != "" {
					proj, err := client.Project(ctx, cfg.WorkspaceID, cfg.ProjectID)
					if err != nil {
						// connectivity works, the project may not exist yet
						log.Warnf("could not access project: %s", err)
					} else {
						fmt.Printf("  project: %s (%s)\n", proj.Name, proj.Type)
					}
				}
			}
		}

		if failed {
			return xerrors.Errorf("some checks failed")
		}
		fmt.Println("all checks passed")
		return nil
	},
}

func loadConfig(c *cli.Context) *uploader.Config {
	cfg := uploader.LoadConfig()
	if v := c.String("dataset-dir"); v != "" {
		cfg.DatasetPath = v
	}
	if c.IsSet("splits") {
		cfg.Splits = c.StringSlice("splits")
	}
	return cfg
}

func orNotSet(v string) string {
	if v == "" {
		return "NOT SET"
	}
	return v
}
