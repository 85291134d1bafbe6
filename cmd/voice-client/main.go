// main package for the voice-client command-line tool. It drives the
// same engines the service uses, talking directly to the model runtimes
// without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-agent/internal/config"
	"github.com/book-expert/voice-agent/internal/core"
	"github.com/book-expert/voice-agent/internal/engine"
	"github.com/book-expert/voice-agent/internal/model/kokoro"
	"github.com/book-expert/voice-agent/internal/model/zonos"
	"github.com/book-expert/voice-agent/internal/voicestore"
)

// Flag names.
const (
	flagText           = "text"
	flagFile           = "file"
	flagModel          = "model"
	flagVoice          = "voice"
	flagCloneFrom      = "clone-from"
	flagReferenceAudio = "reference-audio"
	flagVoiceID        = "voice-id"
	flagMakeDefault    = "make-default"
	flagListVoices     = "list-voices"
	flagSpeed          = "speed"
	flagOutput         = "output"
	flagHealth         = "health"
)

// Flag descriptions.
const (
	flagTextDesc           = "Text to convert to speech"
	flagFileDesc           = "File containing the text to convert"
	flagModelDesc          = "Model backend to use (kokoro or zonos)"
	flagVoiceDesc          = "Preset or cloned voice identifier"
	flagCloneFromDesc      = "Audio sample to register as a new voice"
	flagReferenceAudioDesc = "Audio sample for one-off voice conditioning (zonos)"
	flagVoiceIDDesc        = "Identifier for the cloned voice (default: derived from the sample filename)"
	flagMakeDefaultDesc    = "Also promote the clone to the default voice (zonos)"
	flagListVoicesDesc     = "List available voices and exit"
	flagSpeedDesc          = "Playback speed multiplier"
	flagOutputDesc         = "Output file path (.wav)"
	flagHealthDesc         = "Check model runtime health and exit"
)

// Error and log messages.
const (
	errFailedToLoadConfig = "Failed to load configuration: %v"
	errFailedToInitLogger = "Failed to initialize logger: %v"
	errFailedToCreateDirs = "Failed to create directories: %v"
	errNothingToDo        = "One of --text, --file, --clone-from, --list-voices, or --health must be provided"
	errCannotSpecifyBoth  = "Cannot specify both --text and --file"
	errModelNotEnabled    = "model %q is not enabled in the configuration"
	errFailedToReadFile   = "Failed to read text file: %v"
	errFailedToSynthesize = "Failed to synthesize: %v"
	errFailedToClone      = "Failed to clone voice: %v"
	errFailedToList       = "Failed to list voices: %v"
	errServiceNotHealthy  = "%s runtime is not healthy: %v\n"

	logGenerated      = "Generated: %s (%d Hz, %.2fs)\n"
	logClonedVoice    = "Cloned voice: %s\n"
	logRuntimeHealthy = "%s runtime is healthy\n"
)

// File names and defaults.
const (
	logFileName       = "voice-client.log"
	defaultOutputFile = "output.wav"
	healthTimeout     = 10 * time.Second
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text           string
	file           string
	model          string
	voice          string
	cloneFrom      string
	referenceAudio string
	voiceID        string
	makeDefault    bool
	listVoices     bool
	speed          float64
	output         string
	health         bool
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	cfg, logInstance, err := setup()
	if err != nil {
		return err
	}

	defer func() { _ = logInstance.Close() }()

	if flags.health {
		return handleHealthCheck(cfg, flags.model)
	}

	eng, err := buildEngine(cfg, flags.model, logInstance)
	if err != nil {
		return err
	}

	return handleExecution(eng, flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flag.StringVar(&flags.model, flagModel, "", flagModelDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.cloneFrom, flagCloneFrom, "", flagCloneFromDesc)
	flag.StringVar(&flags.referenceAudio, flagReferenceAudio, "", flagReferenceAudioDesc)
	flag.StringVar(&flags.voiceID, flagVoiceID, "", flagVoiceIDDesc)
	flag.BoolVar(&flags.makeDefault, flagMakeDefault, false, flagMakeDefaultDesc)
	flag.BoolVar(&flags.listVoices, flagListVoices, false, flagListVoicesDesc)
	flag.Float64Var(&flags.speed, flagSpeed, 0, flagSpeedDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.Parse()

	return flags
}

// setup loads config, initializes the logger, and ensures directories exist.
func setup() (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToLoadConfig, err)
	}

	logInstance, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	dirsErr := cfg.EnsureDirectories()
	if dirsErr != nil {
		return nil, nil, fmt.Errorf(errFailedToCreateDirs, dirsErr)
	}

	return cfg, logInstance, nil
}

// pickModel resolves the model flag against the enabled backends. Kokoro
// wins when both are enabled and no flag is given.
func pickModel(cfg *config.Config, name string) (core.ModelType, error) {
	if name == "" {
		if cfg.Kokoro.Enabled {
			return core.ModelKokoro, nil
		}

		return core.ModelZonos, nil
	}

	model, err := core.ParseModelType(name)
	if err != nil {
		return "", fmt.Errorf("invalid --%s: %w", flagModel, err)
	}

	if model == core.ModelKokoro && !cfg.Kokoro.Enabled ||
		model == core.ModelZonos && !cfg.Zonos.Enabled {
		return "", fmt.Errorf(errModelNotEnabled, model)
	}

	return model, nil
}

// buildEngine constructs the engine for the selected model.
func buildEngine(
	cfg *config.Config,
	modelFlag string,
	logInstance *logger.Logger,
) (core.Engine, error) {
	model, err := pickModel(cfg, modelFlag)
	if err != nil {
		return nil, err
	}

	store, err := voicestore.New(cfg.Paths.VoicesDir, logInstance)
	if err != nil {
		return nil, fmt.Errorf("failed to open voice store: %w", err)
	}

	if model == core.ModelKokoro {
		client := kokoro.New(
			cfg.Kokoro.URL, time.Duration(cfg.Kokoro.TimeoutSeconds)*time.Second,
		)

		return engine.NewKokoro(client, store, engine.KokoroOptions{
			LangCode:     cfg.Kokoro.LangCode,
			SplitPattern: cfg.Kokoro.SplitPattern,
		}, cfg.Paths.TempDir, logInstance), nil
	}

	client := zonos.New(
		cfg.Zonos.URL, time.Duration(cfg.Zonos.TimeoutSeconds)*time.Second,
	)

	return engine.NewZonos(client, store, engine.ZonosOptions{
		Language: cfg.Zonos.Language,
	}, cfg.Paths.TempDir, logInstance), nil
}

// handleHealthCheck probes the selected runtime and prints the result.
func handleHealthCheck(cfg *config.Config, modelFlag string) error {
	model, err := pickModel(cfg, modelFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	if model == core.ModelKokoro {
		err = kokoro.New(cfg.Kokoro.URL, healthTimeout).HealthCheck(ctx)
	} else {
		err = zonos.New(cfg.Zonos.URL, healthTimeout).HealthCheck(ctx)
	}

	if err != nil {
		fmt.Printf(errServiceNotHealthy, model, err)

		return err
	}

	fmt.Printf(logRuntimeHealthy, model)

	return nil
}

// handleExecution validates flags and dispatches to the correct operation.
func handleExecution(eng core.Engine, flags appFlags) error {
	if flags.listVoices {
		return listVoices(eng)
	}

	if flags.cloneFrom != "" && flags.text == "" && flags.file == "" {
		return cloneVoice(eng, flags)
	}

	if flags.text != "" && flags.file != "" {
		return errors.New(errCannotSpecifyBoth)
	}

	if flags.text == "" && flags.file == "" {
		flag.Usage()

		return errors.New(errNothingToDo)
	}

	return synthesize(eng, flags)
}

// listVoices prints the voice inventory as JSON.
func listVoices(eng core.Engine) error {
	voices, err := eng.ListVoices()
	if err != nil {
		return fmt.Errorf(errFailedToList, err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(voices)
	if encodeErr != nil {
		return fmt.Errorf("failed to print voices: %w", encodeErr)
	}

	return nil
}

// cloneVoice registers a new voice from the sample and prints its
// identifier.
func cloneVoice(eng core.Engine, flags appFlags) error {
	voiceID, err := eng.Clone(context.Background(), core.CloneRequest{
		SamplePath:  flags.cloneFrom,
		VoiceID:     flags.voiceID,
		MakeDefault: flags.makeDefault,
	})
	if err != nil {
		return fmt.Errorf(errFailedToClone, err)
	}

	fmt.Printf(logClonedVoice, voiceID)

	return nil
}

// synthesize generates speech, cloning first when --clone-from is given
// alongside the text.
func synthesize(eng core.Engine, flags appFlags) error {
	text := flags.text

	if flags.file != "" {
		data, err := os.ReadFile(flags.file)
		if err != nil {
			return fmt.Errorf(errFailedToReadFile, err)
		}

		text = string(data)
	}

	voice := flags.voice

	if flags.cloneFrom != "" {
		voiceID, err := eng.Clone(context.Background(), core.CloneRequest{
			SamplePath:  flags.cloneFrom,
			VoiceID:     flags.voiceID,
			MakeDefault: flags.makeDefault,
		})
		if err != nil {
			return fmt.Errorf(errFailedToClone, err)
		}

		fmt.Printf(logClonedVoice, voiceID)

		voice = voiceID
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = defaultOutputFile
	}

	artifact, err := eng.Synthesize(context.Background(), core.SynthesisRequest{
		Text:               text,
		Voice:              voice,
		ReferenceAudioPath: flags.referenceAudio,
		Speed:              flags.speed,
		SplitPattern:       "",
		OutputPath:         outputPath,
	})
	if err != nil {
		return fmt.Errorf(errFailedToSynthesize, err)
	}

	fmt.Printf(logGenerated, artifact.Path, artifact.SampleRate, artifact.DurationSeconds)

	return nil
}
