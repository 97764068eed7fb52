package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/course-scheduler/internal/models"
	"github.com/noah-isme/course-scheduler/internal/repository"
	"github.com/noah-isme/course-scheduler/internal/service"
	"github.com/noah-isme/course-scheduler/pkg/cache"
	"github.com/noah-isme/course-scheduler/pkg/config"
	"github.com/noah-isme/course-scheduler/pkg/database"
	"github.com/noah-isme/course-scheduler/pkg/daypattern"
	"github.com/noah-isme/course-scheduler/pkg/export"
	"github.com/noah-isme/course-scheduler/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "conflict-audit",
		Usage: "Find block sections that are scheduled into two classes at once",
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Re-check every active schedule and report block-section conflicts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "academic-year", Aliases: []string{"y"}, Usage: "Limit the sweep to one academic year ID"},
					&cli.StringFlag{Name: "semester", Aliases: []string{"s"}, Usage: "Limit the sweep to one semester (1st, 2nd, Summer)"},
					&cli.StringSliceFlag{Name: "section", Usage: "Only show block sections fuzzy-matching this value (repeatable)"},
					&cli.BoolFlag{Name: "mark", Aliases: []string{"m"}, Usage: "Write the is_conflicted flag back to every schedule"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: text, csv or pdf"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the report to a file instead of stdout"},
				},
				Action: scan,
			}, {
				Name:   "flush-cache",
				Usage:  "Drop cached year levels so the API re-reads curriculum data",
				Action: flushCache,
			}, {
				Name:  "patterns",
				Usage: "List the day patterns accepted for new schedules",
				Action: func(c *cli.Context) error {
					for _, p := range daypattern.Canonical() {
						fmt.Fprintf(c.App.Writer, "%-10s %s\n", p, daypattern.Parse(p))
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func scan(c *cli.Context) error {
	semester := models.Semester(c.String("semester"))
	if semester != "" && !semester.Valid() {
		return cli.Exit(fmt.Sprintf("unknown semester %q", semester), 2)
	}
	format := strings.ToLower(c.String("format"))
	if format != "text" && format != "csv" && format != "pdf" {
		return cli.Exit(fmt.Sprintf("unknown format %q", format), 2)
	}
	if format == "pdf" && c.String("out") == "" {
		return cli.Exit("pdf output requires --out", 2)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	audit := service.NewAuditService(
		repository.NewScheduleRepository(db),
		repository.NewCurriculumRepository(db),
		service.DayWindow{Start: cfg.Schedule.DayStart, End: cfg.Schedule.DayEnd},
		nil,
		logr.Named("conflict-audit"),
	)
	report, err := audit.Run(ctx, service.AuditOptions{
		Filter:      models.AuditFilter{AcademicYearID: c.String("academic-year"), Semester: semester},
		UpdateFlags: c.Bool("mark"),
	})
	if err != nil {
		return err
	}
	report = FilterSections(report, c.StringSlice("section"))

	if err := writeReport(c, format, report); err != nil {
		return err
	}
	if n := report.ConflictCount(); n > 0 {
		logr.Info("block-section conflicts remain", zap.Int("conflicts", n))
		return cli.Exit(fmt.Sprintf("%d block-section conflict(s) found", n), 1)
	}
	return nil
}

func flushCache(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	repo := repository.NewCacheRepository(client, logr)
	defer repo.Close()

	cacheSvc := service.NewCacheService(repo, nil, cfg.Cache.TTL, logr.Named("conflict-audit"), true)
	if err := service.NewCachedYearLevelResolver(nil, cacheSvc).Invalidate(ctx); err != nil {
		return fmt.Errorf("flush year level cache: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "year level cache flushed")
	return nil
}

func writeReport(c *cli.Context, format string, report *models.BlockSectionReport) error {
	var out io.Writer = c.App.Writer
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "csv":
		data, err := export.NewCSVExporter().Render(export.AuditDataset(report))
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case "pdf":
		data, err := export.NewPDFExporter().Render(export.AuditDataset(report), "Block Section Audit", export.AuditSubtitle(report))
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		return export.WriteAuditText(out, report)
	}
}
