// Package config reads process configuration from the environment once at
// startup.
package config

import (
	"time"

	"renderfarm/internal/pkg/errors"
)

const (
	TriggerNone    = "none"
	TriggerCommand = "command"
	TriggerRedis   = "redis"

	ProviderLocalFS = "localfs"
	ProviderGDrive  = "gdrive"
)

// Coordinator is the configuration of the scheduling server.
type Coordinator struct {
	HTTPPort     string
	OutDirectory string
	SourceFile   string
	FrameCount   uint64

	LeaseDuration    time.Duration
	SweepInterval    time.Duration
	DetectCompletion bool

	// BuildTrigger is one of TriggerNone, TriggerCommand or TriggerRedis.
	BuildTrigger   string
	BuildCommand   string
	RedisAddr      string
	BuildQueueName string

	// DatabaseURL enables the frame result ledger when set.
	DatabaseURL string

	Storage Storage
}

type Storage struct {
	Provider string
	// LocalRoot is where localfs writes frames. Defaults to OutDirectory.
	LocalRoot string
	GDrive    GDrive
}

type GDrive struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	FolderID     string
}

// LoadCoordinator reads and validates the coordinator environment.
func LoadCoordinator() (Coordinator, error) {
	const op = "config.LoadCoordinator"

	cfg := Coordinator{
		HTTPPort:         Env("HTTP_PORT", "8080"),
		OutDirectory:     Env("OUT_DIRECTORY", "frames"),
		SourceFile:       Env("SRC_FILE", "shamyna.blend"),
		DetectCompletion: BoolEnv("COMPLETION_DETECTION", true),
		BuildCommand:     Env("BUILD_COMMAND", ""),
		RedisAddr:        Env("REDIS_ADDR", ""),
		BuildQueueName:   Env("BUILD_QUEUE_NAME", "renderfarm:builds"),
		DatabaseURL:      Env("DATABASE_URL", ""),
	}

	var err error
	if cfg.FrameCount, err = UintEnv("FRAMES_COUNT", 128); err != nil {
		return Coordinator{}, errors.Wrap(err, op, "invalid frame count")
	}
	if cfg.FrameCount == 0 {
		return Coordinator{}, errors.ValidationField("FRAMES_COUNT", "must be greater than zero").WithOp(op)
	}
	if cfg.LeaseDuration, err = DurationEnv("LEASE_DURATION", 20*time.Minute); err != nil {
		return Coordinator{}, errors.Wrap(err, op, "invalid lease duration")
	}
	if cfg.SweepInterval, err = DurationEnv("SWEEP_INTERVAL", 5*time.Second); err != nil {
		return Coordinator{}, errors.Wrap(err, op, "invalid sweep interval")
	}

	defaultTrigger := TriggerNone
	if cfg.BuildCommand != "" {
		defaultTrigger = TriggerCommand
	}
	cfg.BuildTrigger = Env("BUILD_TRIGGER", defaultTrigger)
	switch cfg.BuildTrigger {
	case TriggerNone:
	case TriggerCommand:
		if cfg.BuildCommand == "" {
			return Coordinator{}, errors.ValidationField("BUILD_COMMAND", "required when BUILD_TRIGGER=command").WithOp(op)
		}
	case TriggerRedis:
		if cfg.RedisAddr == "" {
			return Coordinator{}, errors.ValidationField("REDIS_ADDR", "required when BUILD_TRIGGER=redis").WithOp(op)
		}
	default:
		return Coordinator{}, errors.ValidationField("BUILD_TRIGGER", "must be none, command or redis").
			WithOp(op).
			WithField("value", cfg.BuildTrigger)
	}

	if cfg.Storage, err = loadStorage(cfg.OutDirectory); err != nil {
		return Coordinator{}, errors.Wrap(err, op, "invalid storage configuration")
	}
	return cfg, nil
}

func loadStorage(outDir string) (Storage, error) {
	s := Storage{
		Provider:  Env("STORAGE_PROVIDER", ProviderLocalFS),
		LocalRoot: Env("STORAGE_LOCAL_ROOT", outDir),
	}
	switch s.Provider {
	case ProviderLocalFS:
		return s, nil
	case ProviderGDrive:
		g, err := LoadGDrive(true)
		if err != nil {
			return Storage{}, err
		}
		s.GDrive = g
		return s, nil
	default:
		return Storage{}, errors.ValidationField("STORAGE_PROVIDER", "unknown storage provider").
			WithField("value", s.Provider)
	}
}

// LoadGDrive reads the Google Drive OAuth client. The refresh token is only
// required once it has been minted.
func LoadGDrive(needToken bool) (GDrive, error) {
	var (
		g   GDrive
		err error
	)
	if g.ClientID, err = required("GDRIVE_CLIENT_ID"); err != nil {
		return GDrive{}, err
	}
	if g.ClientSecret, err = required("GDRIVE_CLIENT_SECRET"); err != nil {
		return GDrive{}, err
	}
	if needToken {
		if g.RefreshToken, err = required("GDRIVE_REFRESH_TOKEN"); err != nil {
			return GDrive{}, err
		}
	}
	g.FolderID = Env("GDRIVE_FOLDER_ID", "")
	return g, nil
}

// RenderWorker is the configuration of a render node.
type RenderWorker struct {
	CoordinatorURL string
	// RenderCommand is split on spaces; {source}, {frame} and {output} are
	// substituted per frame.
	RenderCommand     string
	WorkDir           string
	BatchSize         int
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	HTTPTimeout       time.Duration
}

func LoadRenderWorker() (RenderWorker, error) {
	const op = "config.LoadRenderWorker"

	cfg := RenderWorker{
		CoordinatorURL: Env("COORDINATOR_URL", "http://localhost:8080"),
		RenderCommand:  Env("RENDER_COMMAND", "blender -b {source} -o {output} -F PNG -f {frame}"),
		WorkDir:        Env("WORK_DIR", "work"),
	}

	batch, err := UintEnv("BATCH_SIZE", 1)
	if err != nil {
		return RenderWorker{}, errors.Wrap(err, op, "invalid batch size")
	}
	if batch == 0 {
		return RenderWorker{}, errors.ValidationField("BATCH_SIZE", "must be at least 1").WithOp(op)
	}
	cfg.BatchSize = int(batch)

	if cfg.HeartbeatInterval, err = DurationEnv("HEARTBEAT_INTERVAL", time.Minute); err != nil {
		return RenderWorker{}, errors.Wrap(err, op, "invalid heartbeat interval")
	}
	if cfg.PollInterval, err = DurationEnv("POLL_INTERVAL", 10*time.Second); err != nil {
		return RenderWorker{}, errors.Wrap(err, op, "invalid poll interval")
	}
	if cfg.HTTPTimeout, err = DurationEnv("HTTP_TIMEOUT", 5*time.Minute); err != nil {
		return RenderWorker{}, errors.Wrap(err, op, "invalid http timeout")
	}
	return cfg, nil
}

// Builder is the configuration of the queue consumer that runs the build
// command when a job completes.
type Builder struct {
	RedisAddr    string
	QueueName    string
	BuildCommand string
	PopTimeout   time.Duration
}

func LoadBuilder() (Builder, error) {
	const op = "config.LoadBuilder"

	cfg := Builder{
		QueueName: Env("BUILD_QUEUE_NAME", "renderfarm:builds"),
	}
	var err error
	if cfg.RedisAddr, err = required("REDIS_ADDR"); err != nil {
		return Builder{}, errors.Wrap(err, op, "redis address")
	}
	if cfg.BuildCommand, err = required("BUILD_COMMAND"); err != nil {
		return Builder{}, errors.Wrap(err, op, "build command")
	}
	if cfg.PopTimeout, err = DurationEnv("POP_TIMEOUT", 5*time.Second); err != nil {
		return Builder{}, errors.Wrap(err, op, "invalid pop timeout")
	}
	return cfg, nil
}
