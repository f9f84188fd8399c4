package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/wavtray/internal/app"
	"github.com/petems/wavtray/internal/audio"
	"github.com/petems/wavtray/internal/config"
	"github.com/petems/wavtray/internal/logging"
	"github.com/petems/wavtray/internal/wav"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	cfgFile  string
	logLevel string
	duration time.Duration
	outFile  string
)

var rootCmd = &cobra.Command{
	Use:          "wavrec",
	Short:        "Record the microphone to wave files",
	SilenceUsage: true,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record until interrupted or until --duration elapses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return record(cmd.Context())
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print the format and length of a wave file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(args[0])
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDevices()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wavrec %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.Path()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	recordCmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 records until Ctrl-C)")
	recordCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default is a timestamped file in the recordings directory)")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.NewConsole(os.Stderr, cfg.LogLevel), nil
}

func record(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	src, err := audio.NewSource(cfg.Audio.Backend, cfg.Audio.DeviceID)
	if err != nil {
		return err
	}

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if outFile == "" {
		// Let the app name and place the file.
		a := app.New(app.Config{Source: src, Config: cfg, Logger: log})
		if err := a.StartRecording(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Recording... press Ctrl-C to stop")
		<-ctx.Done()
		path, err := a.SaveRecording()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}

	e, err := app.CaptureStart(src, cfg.Audio.SampleRate, cfg.Audio.FrameSize,
		audio.WithLogger(log),
		audio.WithStopTimeout(cfg.StopTimeout()),
	)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Recording... press Ctrl-C to stop")
	<-ctx.Done()

	data, stopErr := app.CaptureStop(e)
	if relErr := app.CaptureRelease(e); relErr != nil {
		log.Warn().Err(relErr).Msg("Failed to release microphone")
	}
	if stopErr != nil {
		if len(data) == 0 {
			return stopErr
		}
		log.Error().Err(stopErr).Msg("Capture stopped with errors, saving what was captured")
	}

	enc := app.Configure(cfg.WavSampleRate(), cfg.Wav.BitsPerSample, cfg.Wav.Channels, cfg.Wav.AudioFormat, cfg.Wav.SubChunk1Size)
	if cfg.Wav.Strict {
		enc.Strict()
	}
	file, err := app.Encode(enc, data)
	if err != nil {
		return fmt.Errorf("failed to encode recording: %w", err)
	}
	if err := os.WriteFile(outFile, file, 0644); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	fmt.Println(outFile)
	return nil
}

func inspect(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, wav.HeaderSize)
	if _, err := f.ReadAt(head, 0); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	h, err := wav.ParseHeader(head)
	if err != nil {
		return err
	}

	info, err := wav.Inspect(f)
	if err != nil {
		return err
	}

	fmt.Printf("format:          %d\n", h.AudioFormat)
	fmt.Printf("sample rate:     %d Hz\n", h.SampleRate)
	fmt.Printf("channels:        %d\n", h.NumChannels)
	fmt.Printf("bits per sample: %d\n", h.BitsPerSample)
	fmt.Printf("byte rate:       %d\n", h.ByteRate)
	fmt.Printf("block align:     %d\n", h.BlockAlign)
	fmt.Printf("data bytes:      %d\n", h.SubChunk2Size)
	fmt.Printf("frames:          %d\n", info.Frames)
	fmt.Printf("duration:        %s\n", info.Duration)
	fmt.Printf("peak:            %d\n", info.Peak)
	return nil
}

func listDevices() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := audio.NewSource(cfg.Audio.Backend, cfg.Audio.DeviceID)
	if err != nil {
		return err
	}
	devices, err := src.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, d.Name)
	}
	return nil
}
