package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"runtime/debug"
	"strings"

	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	neurokaraoke "github.com/VladimirKravtsov36/neuro-karaoke-demo"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/cmd/download"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/cmd/history"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/cmd/migrate"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/cmd/mix"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/cmd/search"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/cmd/separate"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/cmd/setting"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/cmd/web"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("neurokaraoke", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "neurokaraoke [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newSettingCommand(),
			newSearchCommand(),
			newDownloadCommand(),
			newSeparateCommand(),
			newMixCommand(),
			newPrepareCommand(),
			newHistoryCommand(),
			newWebCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "neurokaraoke version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix("NEUROKARAOKE"),
	}
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}

	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "neurokaraoke.db", "path for sqlite, dsn for mysql or postgres")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "create or update the database schema",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}

func newSettingCommand() *ffcli.Command {
	cmd := "setting"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &setting.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "neurokaraoke.db", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Name, "name", "", "setting name")
	fs.StringVar(&cfg.Value, "value", "", "value to set")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "save a setting such as the catalog token",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return setting.Run(ctx, cfg)
		},
	}
}

func newSearchCommand() *ffcli.Command {
	cmd := "search"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &search.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Token, "token", "", "catalog oauth token")
	fs.StringVar(&cfg.Query, "query", "", "search query")
	fs.IntVar(&cfg.Limit, "limit", 10, "maximum number of results")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags] <query>", cmd),
		Options:    options(),
		ShortHelp:  "search tracks in the catalog",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if cfg.Query == "" && len(args) > 0 {
				cfg.Query = strings.Join(args, " ")
			}
			return search.Run(ctx, cfg)
		},
	}
}

func newDownloadCommand() *ffcli.Command {
	cmd := "download"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &download.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Token, "token", "", "catalog oauth token")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.ID, "id", "", "track id")
	fs.StringVar(&cfg.Output, "output", "downloads", "output directory")
	fs.BoolVar(&cfg.Lyrics, "lyrics", true, "fetch lyrics along with the audio")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags] <id>", cmd),
		Options:    options(),
		ShortHelp:  "download a track from the catalog",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if cfg.ID == "" && len(args) > 0 {
				cfg.ID = args[0]
			}
			return download.Run(ctx, cfg)
		},
	}
}

func newSeparateCommand() *ffcli.Command {
	cmd := "separate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &separate.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "", "file storage type (local, s3)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "file storage connection string")
	fs.StringVar(&cfg.Song, "song", "", "path to the audio file")
	fs.StringVar(&cfg.Output, "output", "outputs/separated", "output root directory")
	fs.StringVar(&cfg.Bin, "bin", "demucs", "demucs binary")
	fs.StringVar(&cfg.Model, "model", "htdemucs", "demucs model name")
	fs.StringVar(&cfg.Device, "device", "", "device (cuda, cpu)")
	fs.Float64Var(&cfg.Segment, "segment", 0, "segment length in seconds")
	fs.IntVar(&cfg.Shifts, "shifts", 0, "number of random shifts")
	fs.IntVar(&cfg.Jobs, "jobs", 0, "number of parallel jobs")
	fs.BoolVar(&cfg.MP3, "mp3", false, "write mp3 stems instead of wav")
	fs.IntVar(&cfg.Bitrate, "bitrate", 320, "mp3 bitrate in kbps")
	fs.BoolVar(&cfg.Float32, "float32", false, "write 32-bit float wav stems")
	fs.BoolVar(&cfg.Keep, "keep", false, "keep intermediate demucs output")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "re-run even if stems exist")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags] <song>", cmd),
		Options:    options(),
		ShortHelp:  "split a song into vocal and instrumental stems",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if cfg.Song == "" && len(args) > 0 {
				cfg.Song = args[0]
			}
			return separate.Run(ctx, cfg)
		},
	}
}

func newMixCommand() *ffcli.Command {
	cmd := "mix"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &mix.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Vocals, "vocals", "", "path to the vocals stem")
	fs.StringVar(&cfg.Instrumental, "instrumental", "", "path to the instrumental stem")
	fs.Float64Var(&cfg.Gain, "gain", 1.0, "vocal gain between 0 and 1.2")
	fs.StringVar(&cfg.Output, "output", "mix.wav", "output file (wav or mp3)")
	fs.IntVar(&cfg.Bitrate, "bitrate", 320, "mp3 bitrate in kbps")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "blend stems with an adjustable vocal level",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return mix.Run(ctx, cfg)
		},
	}
}

func newPrepareCommand() *ffcli.Command {
	cmd := "prepare"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &neurokaraoke.Config{}
	var id string

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Token, "token", "", "catalog oauth token")
	fs.StringVar(&id, "id", "", "track id")
	fs.StringVar(&cfg.Downloads, "downloads", "downloads", "download directory")
	fs.StringVar(&cfg.Output, "output", "outputs/separated", "output root directory")
	fs.StringVar(&cfg.Bin, "bin", "demucs", "demucs binary")
	fs.StringVar(&cfg.Model, "model", "htdemucs", "demucs model name")
	fs.StringVar(&cfg.Device, "device", "", "device (cuda, cpu)")
	fs.Float64Var(&cfg.Segment, "segment", 0, "segment length in seconds")
	fs.IntVar(&cfg.Shifts, "shifts", 0, "number of random shifts")
	fs.IntVar(&cfg.Jobs, "jobs", 0, "number of parallel jobs")
	fs.BoolVar(&cfg.MP3, "mp3", false, "write mp3 stems instead of wav")
	fs.IntVar(&cfg.Bitrate, "bitrate", 320, "mp3 bitrate in kbps")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "re-run even if stems exist")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags] <id>", cmd),
		Options:    options(),
		ShortHelp:  "download a track and split it in one step",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if id == "" && len(args) > 0 {
				id = args[0]
			}
			result, err := neurokaraoke.Prepare(ctx, cfg, id)
			if err != nil {
				return err
			}
			if result.Lyrics == nil {
				log.Println("no lyrics available")
			}
			return nil
		},
	}
}

func newHistoryCommand() *ffcli.Command {
	cmd := "history"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &history.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "neurokaraoke.db", "path for sqlite, dsn for mysql or postgres")
	fs.IntVar(&cfg.Page, "page", 1, "page number")
	fs.IntVar(&cfg.Size, "size", 100, "page size")
	fs.StringVar(&cfg.Model, "model", "", "filter by model name")
	fs.StringVar(&cfg.CSV, "csv", "", "export to csv file instead of printing")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "list past separations",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return history.Run(ctx, cfg)
		},
	}
}

func newWebCommand() *ffcli.Command {
	cmd := "web"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &web.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Token, "token", "", "catalog oauth token")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Addr, "addr", "localhost:1337", "address to listen on")
	fs.BoolVar(&cfg.Open, "open", false, "open the browser after starting")
	fsMapVar(fs, &cfg.Credentials, "credentials", nil, "basic auth credentials Example: user1:pass1;user2:pass2")
	fsMapVar(fs, &cfg.Volumes, "volumes", nil, "extra volumes to serve Example: ./covers:/covers;./extra:/extra")
	fs.StringVar(&cfg.Downloads, "downloads", "downloads", "download directory")
	fs.StringVar(&cfg.Output, "output", "outputs/separated", "output root directory")
	fs.StringVar(&cfg.Bin, "bin", "demucs", "demucs binary")
	fs.StringVar(&cfg.Model, "model", "htdemucs", "demucs model name")
	fs.StringVar(&cfg.Device, "device", "", "device (cuda, cpu)")
	fs.Float64Var(&cfg.Segment, "segment", 0, "segment length in seconds")
	fs.IntVar(&cfg.Shifts, "shifts", 0, "number of random shifts")
	fs.IntVar(&cfg.Jobs, "jobs", 0, "number of parallel jobs")
	fs.BoolVar(&cfg.MP3, "mp3", false, "write mp3 stems instead of wav")
	fs.IntVar(&cfg.Bitrate, "bitrate", 320, "mp3 bitrate in kbps")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("neurokaraoke %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "launch the karaoke web player",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return web.Serve(ctx, cfg)
		},
	}
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[parts[0]] = parts[1]
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
