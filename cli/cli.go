package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/omarkhan/dreamforge/artifact"
	"github.com/omarkhan/dreamforge/config"
	"github.com/omarkhan/dreamforge/core"
	"github.com/omarkhan/dreamforge/llm"
	"github.com/omarkhan/dreamforge/logger"
	"github.com/omarkhan/dreamforge/memory"
	"github.com/omarkhan/dreamforge/stub"
)

var rootCmd = &cobra.Command{
	Use:   "dreamforge",
	Short: "Dreamforge turns short ideas into generated images and 3D models",
	Long:  `Dreamforge is a CLI tool that enhances a natural-language idea, generates an image and a 3D model from it, and records every creation for later retrieval.`,
}

var createCmd = &cobra.Command{
	Use:   "create [prompt]",
	Short: "Run the creative pipeline for a prompt",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		prompt := strings.Join(args, " ")
		flags, err := parseFlags(cmd)
		if err != nil {
			fmt.Printf("Error parsing flags: %v\n", err)
			os.Exit(1)
		}

		cfg, err := config.LoadConfig(flags.config)
		if err != nil {
			fmt.Printf("Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if flags.user == "" {
			flags.user = cfg.DefaultUserID
		}

		runCreate(cfg, prompt, flags.user)
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent creations",
	Run: func(cmd *cobra.Command, args []string) {
		flags, err := parseFlags(cmd)
		if err != nil {
			fmt.Printf("Error parsing flags: %v\n", err)
			os.Exit(1)
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			fmt.Printf("Error parsing flags: %v\n", err)
			os.Exit(1)
		}

		withLedger(flags.config, func(ledger *memory.Ledger) error {
			creations, err := ledger.RecentCreations(limit, flags.user)
			if err != nil {
				return err
			}
			fmt.Print(renderCreations(creations))
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search past creations by prompt or tag substring",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags, err := parseFlags(cmd)
		if err != nil {
			fmt.Printf("Error parsing flags: %v\n", err)
			os.Exit(1)
		}

		withLedger(flags.config, func(ledger *memory.Ledger) error {
			creations, err := ledger.SearchCreations(args[0], flags.user)
			if err != nil {
				return err
			}
			fmt.Print(renderCreations(creations))
			return nil
		})
	},
}

func runCreate(cfg *config.Config, prompt, userID string) {
	logger.InitLogger()
	log := logger.GetLogger()

	ledger, err := memory.NewLedger(cfg.DBPath)
	if err != nil {
		fmt.Printf("Error opening creation ledger: %v\n", err)
		os.Exit(1)
	}
	defer ledger.Close()

	store, err := artifact.NewOsStore(cfg.OutputDir)
	if err != nil {
		fmt.Printf("Error preparing artifact store: %v\n", err)
		os.Exit(1)
	}

	enhancer := llm.NewOllamaEnhancer(&llm.EnhancerConfig{
		Endpoint: cfg.EnhancerEndpoint,
		Model:    cfg.EnhancerModel,
		Timeout:  cfg.RequestTimeout,
		TellmURL: cfg.TellmURL,
	}, rand.New(rand.NewSource(time.Now().UnixNano())), log)

	deps := &core.Dependencies{
		Enhancer:         enhancer,
		Invoker:          stub.NewStub(cfg.ServiceBaseURL, cfg.RequestTimeout),
		Artifacts:        store,
		Ledger:           ledger,
		Sessions:         memory.NewSessionCache(),
		TextToImageAppID: cfg.TextToImageAppID,
		ImageTo3DAppID:   cfg.ImageTo3DAppID,
	}

	if reference := findPriorReference(ledger, prompt, userID); reference != "" {
		fmt.Println(referenceStyle.Render(fmt.Sprintf("Using previous creation %q as reference.", reference)))
	}

	publisher := NewCliStepPublisher(log)
	engine := NewEngine(deps, publisher, log, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	defer engine.Shutdown(5 * time.Second)

	resultChan := engine.AddRequest(prompt, userID)

	for {
		select {
		case step := <-publisher.stepChan:
			fmt.Println(stepStyle.Render(fmt.Sprintf("✓ %s", stepLabel(step))))
		case err := <-publisher.errorChan:
			log.Error(fmt.Sprintf("Error received during creation: %v", err))
		case result := <-resultChan:
			fmt.Print(renderResult(result))
			if result.Failed() {
				os.Exit(1)
			}
			return
		}
	}
}

func withLedger(configPath string, fn func(*memory.Ledger) error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	ledger, err := memory.NewLedger(cfg.DBPath)
	if err != nil {
		fmt.Printf("Error opening creation ledger: %v\n", err)
		os.Exit(1)
	}
	defer ledger.Close()

	if err := fn(ledger); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	user   string
	config string
}

func parseFlags(cmd *cobra.Command) (flags, error) {
	user, err := cmd.Flags().GetString("user")
	if err != nil {
		return flags{}, err
	}

	config, err := cmd.Flags().GetString("config")
	if err != nil {
		return flags{}, err
	}

	return flags{
		user:   user,
		config: config,
	}, nil
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(searchCmd)

	createCmd.Flags().StringP("user", "u", "", "User identifier for the creation")
	createCmd.Flags().StringP("config", "c", "", "Path to custom configuration file")

	recentCmd.Flags().StringP("user", "u", "", "Filter by user identifier")
	recentCmd.Flags().StringP("config", "c", "", "Path to custom configuration file")
	recentCmd.Flags().IntP("limit", "n", 5, "Maximum number of creations to list")

	searchCmd.Flags().StringP("user", "u", "", "Filter by user identifier")
	searchCmd.Flags().StringP("config", "c", "", "Path to custom configuration file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
