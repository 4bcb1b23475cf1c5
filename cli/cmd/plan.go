package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/slipway-dev/slipway/cli/config"
	"github.com/slipway-dev/slipway/cli/render"
	"github.com/slipway-dev/slipway/pipeline"
	"github.com/slipway-dev/slipway/types"
)

// PlanResponse describes what a release run would do, without running it.
type PlanResponse struct {
	Version             string         `json:"version"`
	Package             string         `json:"package"`
	WorkDir             string         `json:"work_dir"`
	StoreBackend        string         `json:"store_backend"`
	UploadToRelease     bool           `json:"upload_to_release"`
	UseLargeFileStorage bool           `json:"use_large_file_storage"`
	DistributionEnabled bool           `json:"distribution_enabled"`
	DistributionTarget  string         `json:"distribution_target,omitempty"`
	Platforms           []PlanPlatform `json:"platforms"`
	Nodes               []string       `json:"nodes"`
}

// PlanPlatform is one platform row in a plan.
type PlanPlatform struct {
	ID       string `json:"id"`
	Target   string `json:"target"`
	Profile  string `json:"profile"`
	Format   string `json:"format"`
	Artifact string `json:"artifact"`
	Channel  string `json:"channel,omitempty"`
}

// PlanCommand returns the plan command.
// Plan is read-only: it resolves the version and reports the artifact
// names and graph a release would produce.
func PlanCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Show what a release would do (dry run)",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			&cli.StringFlag{
				Name:  "version-label",
				Usage: "Explicit release version (wins over --tag)",
			},
			&cli.StringFlag{
				Name:    "tag",
				Usage:   "Trigger tag to derive the version from (vX.Y.Z...)",
				EnvVars: []string{"SLIPWAY_TAG"},
			},
		),
		Action: planAction,
	}
}

func planAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for plan command", 1)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), pipeline.ExitCodeConfigError)
	}

	version, err := pipeline.ResolveVersion(c.String("version-label"), c.String("tag"))
	if err != nil {
		return cli.Exit(err.Error(), pipeline.ExitCodeConfigError)
	}

	return r.Render(buildPlan(cfg, version))
}

func buildPlan(cfg *config.Config, version types.Version) PlanResponse {
	distEnabled := pipeline.DistributionEnabled(cfg.Distribution.Target)

	plan := PlanResponse{
		Version:             version.String(),
		Package:             cfg.PackageName,
		WorkDir:             cfg.WorkDir,
		StoreBackend:        storeBackend(cfg),
		UploadToRelease:     cfg.UploadToRelease,
		UseLargeFileStorage: cfg.UseLargeFileStorage,
		DistributionEnabled: distEnabled,
		DistributionTarget:  cfg.Distribution.Target,
		Nodes:               nodeOrder(cfg.Platforms),
	}

	for i := range cfg.Platforms {
		spec := &cfg.Platforms[i]
		row := PlanPlatform{
			ID:       spec.ID,
			Target:   spec.Target,
			Profile:  spec.Profile,
			Format:   string(spec.Format),
			Artifact: types.ArtifactFileName(cfg.PackageName, version, spec.ID, spec.Format),
		}
		if distEnabled {
			row.Channel = spec.Channel()
		}
		plan.Platforms = append(plan.Platforms, row)
	}

	return plan
}
