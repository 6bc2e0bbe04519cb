package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hackrf-receiver/internal/config"
	"hackrf-receiver/internal/control"
	"hackrf-receiver/internal/demod"
	"hackrf-receiver/internal/transport"
)

var rootCmd = &cobra.Command{
	Use:          "hackrf-receiver",
	Short:        "Demodulate FM, AM, NFM and PAL-B/G television from a HackRF TCP server.",
	SilenceUsage: true,
}

var (
	configPath  string
	mode        demod.Mode
	sampleRate  int
	audioRate   int
	serverAddr  string
	controlAddr string
	frequencyHz int64
	vgaGain     int
	lnaGain     int
	ampGain     int
	noControl   bool
	noSpeaker   bool
	recordPath  string
	ffplay      bool
	snapshotDir string
	metricsAddr string
	realtime    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&controlAddr, "control", "", "Control address (host:port)")

	receiveCmd := &cobra.Command{
		Use:   "receive",
		Short: "Tune the front end and demodulate its live IQ stream",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return receive(cmd) },
	}
	addOutputFlags(receiveCmd)
	receiveCmd.Flags().StringVar(&serverAddr, "server", "", "IQ server address (host:port)")
	receiveCmd.Flags().Int64VarP(&frequencyHz, "frequency", "f", 0, "Center frequency in Hz")
	receiveCmd.Flags().IntVar(&vgaGain, "vga-gain", 0, "VGA gain (0-62 dB)")
	receiveCmd.Flags().IntVar(&lnaGain, "lna-gain", 0, "LNA gain (0-40 dB)")
	receiveCmd.Flags().IntVar(&ampGain, "amp-gain", 0, "RX amp gain (0-14 dB)")
	receiveCmd.Flags().BoolVar(&noControl, "no-control", false, "Do not send tuning commands")
	rootCmd.AddCommand(receiveCmd)

	playCmd := &cobra.Command{
		Use:   "play [flags] input.iq|input.wav",
		Short: "Demodulate a recorded IQ file",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return play(cmd, args[0]) },
	}
	addOutputFlags(playCmd)
	playCmd.Flags().BoolVar(&realtime, "realtime", true, "Pace playback at the sample rate")
	rootCmd.AddCommand(playCmd)

	controlCmd := &cobra.Command{
		Use:   "control COMMAND...",
		Short: "Send raw control commands, e.g. SET_FREQ:100000000 or GET_STATUS",
		Args:  cobra.MinimumNArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return sendControl(cmd, args) },
	}
	rootCmd.AddCommand(controlCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().VarP(&mode, "mode", "m", "Demodulation mode: fm, am, nfm, pal")
	cmd.Flags().IntVarP(&sampleRate, "sample-rate", "s", 0, "IQ sample rate in Hz (default per mode)")
	cmd.Flags().IntVarP(&audioRate, "audio-rate", "a", 0, "Audio output rate in Hz")
	cmd.Flags().BoolVar(&noSpeaker, "no-speaker", false, "Disable audio playback")
	cmd.Flags().StringVarP(&recordPath, "record", "o", "", "Record audio to a WAV file")
	cmd.Flags().BoolVar(&ffplay, "ffplay", false, "Show PAL video in an ffplay window")
	cmd.Flags().StringVar(&snapshotDir, "snapshots", "", "Write PAL frames as PNG files to this directory")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
}

// loadConfig reads the config file, if any, and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("sample-rate") {
		cfg.IQSampleRate = sampleRate
	}
	if flags.Changed("audio-rate") {
		cfg.OutputSampleRate = audioRate
	}
	if flags.Changed("server") {
		cfg.Server.Address = serverAddr
	}
	if flags.Changed("control") {
		cfg.Control.Address = controlAddr
	}
	if flags.Changed("frequency") {
		cfg.Control.FrequencyHz = frequencyHz
	}
	if flags.Changed("vga-gain") {
		cfg.Control.VGAGain = vgaGain
	}
	if flags.Changed("lna-gain") {
		cfg.Control.LNAGain = lnaGain
	}
	if flags.Changed("amp-gain") {
		cfg.Control.RxAmpGain = ampGain
	}
	if cmd.Name() == "receive" {
		cfg.Control.Enabled = !noControl
	}
	if noSpeaker {
		cfg.Audio.Speaker = false
	}
	if flags.Changed("record") {
		cfg.Audio.RecordPath = recordPath
	}
	if ffplay {
		cfg.Video.FFplay = true
	}
	if flags.Changed("snapshots") {
		cfg.Video.SnapshotDir = snapshotDir
	}
	if flags.Changed("metrics") {
		cfg.MetricsAddr = metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func receive(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Control.Enabled {
		client := control.NewClient(cfg.Control.Address)
		if err := client.SendAll(ctx, cfg.Control.Commands(cfg.SampleRate())...); err != nil {
			log.Printf("Warning: front end configuration incomplete: %v", err)
		}
	}

	conn, err := transport.Dial(ctx, cfg.Server.Address, transport.Options{
		DialTimeout: cfg.Server.DialTimeout,
		ReadTimeout: cfg.Server.ReadTimeout,
		ChunkSize:   cfg.Server.ChunkSize,
	})
	if err != nil {
		return err
	}
	log.Printf("Connected to IQ server %s", conn.RemoteAddr())
	return run(ctx, cfg, conn)
}

func play(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	file, err := transport.OpenFile(path, cfg.Server.ChunkSize)
	if err != nil {
		return err
	}
	if rate := file.SampleRate(); rate > 0 && !cmd.Flags().Changed("sample-rate") {
		cfg.IQSampleRate = rate
	}

	var src transport.Source = file
	if realtime {
		src = transport.Throttle(ctx, file, cfg.SampleRate())
	}
	return run(ctx, cfg, src)
}

func sendControl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmds := make([]control.Command, 0, len(args))
	for _, arg := range args {
		c, err := control.Parse(arg)
		if err != nil {
			return err
		}
		cmds = append(cmds, c)
	}

	ctx, cancel := signalContext()
	defer cancel()
	client := control.NewClient(cfg.Control.Address)
	for i, c := range cmds {
		reply, err := client.Send(ctx, c)
		if reply != "" {
			fmt.Println(reply)
		}
		if err != nil {
			return err
		}
		if i < len(cmds)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(client.Spacing):
			}
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
