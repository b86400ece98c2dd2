// Command marrow-replay plays a recorded gesture script against a router
// without a headset or a renderer, logging what the gestures did and how the
// frame budget held up. It is the harness behind regression traces: record a
// session once, replay it after every change.
//
// Usage:
//
//	marrow-replay [flags] script.json
//
// Flags:
//
//	-world file   world layout JSON (structures, buttons, panels)
//	-record file  re-record the replayed session to this file
//	-config dir   directory containing marrow-replay.cfg.json
//
// Configuration (marrow-replay.cfg.json, all keys optional, environment
// variables with a MARROW_ prefix override the file):
//
//	logLevel   debug|info|warn|error    (default info)
//	frameTime  simulated frame duration (default 8ms)
//	tier       low|medium|high          (default high)
//	debug      gesture/governor debug logging to stderr
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/phanxgames/marrow"
)

func main() {
	worldPath := flag.String("world", "", "world layout JSON")
	recordPath := flag.String("record", "", "re-record the replay to this file")
	configDir := flag.String("config", ".", "directory containing marrow-replay.cfg.json")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: marrow-replay [flags] script.json")
		flag.PrintDefaults()
		os.Exit(2)
	}

	loadConfig(*configDir)
	logger := newLogger(viper.GetString("logLevel"))

	if err := run(logger, flag.Arg(0), *worldPath, *recordPath); err != nil {
		logger.Fatal().Err(err).Msg("replay failed")
	}
}

func loadConfig(dir string) {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("frameTime", "8ms")
	viper.SetDefault("tier", "high")
	viper.SetDefault("debug", false)

	viper.SetEnvPrefix("marrow")
	viper.AutomaticEnv()

	viper.SetConfigName("marrow-replay.cfg.json")
	viper.SetConfigType("json")
	viper.AddConfigPath(dir)

	// The config file is optional; defaults and environment cover the rest.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
			os.Exit(2)
		}
	}
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

func run(logger zerolog.Logger, scriptPath, worldPath, recordPath string) error {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return err
	}
	script, err := marrow.LoadGestureScript(data)
	if err != nil {
		return err
	}

	w, err := loadWorld(worldPath)
	if err != nil {
		return err
	}
	logger.Info().
		Str("script", script.Name).
		Str("id", script.ID).
		Int("steps", len(script.Steps)).
		Int("structures", w.index.Len()).
		Int("pickables", w.ui.Len()).
		Msg("replay starting")

	router := marrow.NewRouter(marrow.RouterConfig{
		Anchor:      w.anchor,
		UI:          w.ui,
		PickContent: w.index.Pick,
	})

	var selects, uiActions int
	router.OnSelectStructure(func(ctx marrow.SelectContext) {
		selects++
		logger.Info().
			Str("source", string(ctx.Source)).
			Str("structure", string(ctx.Structure)).
			Msg("select")
	})
	router.OnUIAction(func(ctx marrow.UIActionContext) {
		uiActions++
		logger.Info().
			Str("source", string(ctx.Source)).
			Str("action", string(ctx.Action)).
			Float64("distance", ctx.Distance).
			Msg("ui action")
	})
	router.OnAnchorScale(func(ctx marrow.ScaleContext) {
		logger.Debug().Float64("scale", ctx.Scale).Msg("bimanual scale")
	})
	router.OnHoverEnter(func(ctx marrow.HoverContext) {
		logger.Debug().
			Str("source", string(ctx.Source)).
			Str("action", string(ctx.Pickable.Action)).
			Msg("hover enter")
	})

	tier, err := parseTier(viper.GetString("tier"))
	if err != nil {
		return err
	}
	governor := marrow.NewPerfGovernor(tier)
	if viper.GetBool("debug") {
		router.SetDebugMode(true)
		governor.SetDebugMode(true)
	}
	frameTime := viper.GetDuration("frameTime")

	session := marrow.NewSyntheticSession()
	router.AttachSession(session)

	var rec *marrow.Recorder
	if recordPath != "" {
		rec = marrow.NewRecorder(script.Name)
		session.Subscribe(rec)
	}

	runner := marrow.NewScriptRunner(script, session)
	frames := 0
	for !runner.Done() {
		runner.Step()
		router.Update(session)
		if rec != nil {
			rec.RecordFrame(session)
		}
		sample := governor.RecordFrame(frameTime)
		if sample.Switched {
			logger.Warn().
				Stringer("tier", sample.Tier).
				Dur("p95", sample.P95).
				Msg("quality tier changed")
		}
		frames++
	}

	stats := governor.Stats()
	pos := w.anchor.Position()
	logger.Info().
		Int("frames", frames).
		Int("selects", selects).
		Int("uiActions", uiActions).
		Dur("meanFrame", stats.Mean).
		Dur("p95", stats.P95).
		Stringer("tier", governor.Tier()).
		Floats64("anchor", []float64{pos[0], pos[1], pos[2]}).
		Float64("scale", w.anchor.Scale()[0]).
		Msg("replay finished")

	if rec != nil {
		out, err := json.MarshalIndent(rec.Script(), "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(recordPath, out, 0o644); err != nil {
			return fmt.Errorf("write recording: %w", err)
		}
		logger.Info().Str("path", recordPath).Msg("recording written")
	}
	return nil
}

func parseTier(s string) (marrow.QualityTier, error) {
	switch strings.ToLower(s) {
	case "low":
		return marrow.TierLow, nil
	case "medium":
		return marrow.TierMedium, nil
	case "high":
		return marrow.TierHigh, nil
	}
	return marrow.TierLow, fmt.Errorf("unknown quality tier %q", s)
}
