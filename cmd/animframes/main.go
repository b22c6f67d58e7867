package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/animframes/internal/config"
	"github.com/ivlev/animframes/internal/engine"
	"github.com/ivlev/animframes/internal/manifest"
	"github.com/ivlev/animframes/internal/raster"
	"github.com/ivlev/animframes/internal/source"
	"github.com/ivlev/animframes/internal/system"
)

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	configPtr := flag.String("config", "animframes.yaml", "Файл конфигурации YAML (если нет, используются значения по умолчанию)")
	inputPtr := flag.String("input", "", "Изображение, папка слоёв, PDF или qr:<текст> (по умолчанию: самое свежее изображение в input/)")
	presetPtr := flag.String("preset", "", "Пресет: "+strings.Join(config.PresetNames(), ", "))
	framesPtr := flag.Int("frames", 0, "Число кадров для однофазных пресетов")
	rotFramesPtr := flag.Int("rot-frames", 0, "Число кадров вращения (cross, cross-locked)")
	openFramesPtr := flag.Int("open-frames", 0, "Число кадров открытия (cross, cross-locked)")
	targetPtr := flag.String("target", "", "Куда писать кадры: new или source")
	outPtr := flag.String("out", "", "Папка для результатов")
	pagePtr := flag.Int("page", 0, "Страница PDF (с нуля)")
	dpiPtr := flag.Int("dpi", 0, "DPI для PDF")
	workersPtr := flag.Int("workers", 0, "Потоки для записи кадров")
	noDumpPtr := flag.Bool("no-dump", false, "Не сохранять кадры в PNG, только манифест")
	quietPtr := flag.Bool("quiet", false, "Только предупреждения и ошибки")
	lastPtr := flag.Bool("last", false, "Показать сводку последнего прогона из папки результатов и выйти")

	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["config"] {
		if _, err := os.Stat(*configPtr); err != nil {
			log.Fatalf("[-] Файл конфигурации: %v", err)
		}
	}
	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	if set["input"] {
		cfg.Input.Path = *inputPtr
	}
	if set["preset"] {
		cfg.Plan.Preset = *presetPtr
		cfg.Plan.Phases = nil
	}
	if set["target"] {
		cfg.Plan.Target = *targetPtr
	}
	if set["out"] {
		cfg.Output.Dir = *outPtr
	}
	if set["page"] {
		cfg.Input.Page = *pagePtr
	}
	if set["dpi"] {
		cfg.Input.DPI = *dpiPtr
	}
	if set["workers"] {
		cfg.Output.Workers = *workersPtr
	}
	if *noDumpPtr {
		cfg.Output.DumpFrames = false
	}
	if *quietPtr {
		cfg.Log.Quiet = true
	}

	if *lastPtr {
		m, path, err := lastRun(cfg.Output)
		if err != nil {
			log.Fatalf("[-] Ошибка: %v", err)
		}
		fmt.Printf("[*] Манифест: %s\n", path)
		fmt.Print(summarize(m))
		return
	}

	if cfg.Input.Path == "" {
		latest, err := system.FindLatestImage("input")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите изображение в input/", err)
		}
		cfg.Input.Path = latest
		fmt.Printf("[*] Выбран файл: %s\n", latest)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	logger, err := system.NewLogger(cfg.Log.Mode, cfg.Log.Quiet)
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации логгера: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	plan, err := cfg.Plan.Resolve()
	if err != nil {
		log.Fatalf("[-] Ошибка плана: %v", err)
	}
	plan.Override(*framesPtr, *rotFramesPtr, *openFramesPtr)

	if err := run(ctx, cfg, plan, logger); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, plan config.Plan, logger *zap.Logger) error {
	src, err := source.Open(cfg.Input, logger)
	if err != nil {
		return fmt.Errorf("источник: %w", err)
	}
	defer src.Close()

	pic, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("загрузка %s: %w", src.Name(), err)
	}
	fmt.Printf("[*] Источник: %s (%dx%d, слоёв: %d)\n", src.Name(), pic.Width, pic.Height, len(pic.Layers))

	c := raster.New(raster.WithLogger(logger))
	img, err := c.Import(pic.Width, pic.Height, pic.Layers)
	if err != nil {
		return err
	}

	job, err := plan.Job(img)
	if err != nil {
		return err
	}
	fmt.Printf("[*] Пресет: %s, кадров: %d\n", plan.Preset, plan.TotalFrames())

	res, err := engine.NewSequencer(c, engine.WithLogger(logger)).Run(ctx, job)
	if err != nil {
		return err
	}

	runDir := manifest.RunDir(cfg.Output.Dir, runName(cfg.Input.Path), time.Now())
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}
	if cfg.Output.DumpFrames {
		if err := dumpFrames(ctx, c, res, runDir, cfg.Output.Workers); err != nil {
			return err
		}
	}

	m, err := manifest.Build(c, res, src.Name(), plan.Preset, cfg.Output.DumpFrames)
	if err != nil {
		return err
	}
	manifestPath := filepath.Join(runDir, cfg.Output.Manifest)
	if err := manifest.Write(m, manifestPath); err != nil {
		return err
	}

	fmt.Printf("[+++] Успех! Кадров: %d за %v. Манифест: %s\n", len(res.Frames), res.Duration.Round(time.Millisecond), manifestPath)
	return nil
}

// dumpFrames writes every frame, mask applied, as a PNG the size of the image.
func dumpFrames(ctx context.Context, c *raster.Canvas, res *engine.Result, dir string, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range res.Frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pix, err := c.RenderFrame(res.Image, f.Layer)
			if err != nil {
				return fmt.Errorf("кадр %q: %w", f.Name, err)
			}
			defer system.PutImage(pix)

			out, err := os.Create(filepath.Join(dir, manifest.FrameFile(i)))
			if err != nil {
				return err
			}
			if err := png.Encode(out, pix); err != nil {
				out.Close()
				return err
			}
			return out.Close()
		})
	}
	return g.Wait()
}

func runName(path string) string {
	if strings.HasPrefix(path, source.QRPrefix) {
		return "qr"
	}
	base := filepath.Base(filepath.Clean(path))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(name, " ", "_")
}

// lastRun loads the manifest of the newest run under the output directory.
func lastRun(out config.OutputConfig) (*manifest.Manifest, string, error) {
	path, err := manifest.FindLatest(out.Dir, out.Manifest)
	if err != nil {
		return nil, "", err
	}
	m, err := manifest.Read(path)
	if err != nil {
		return nil, "", err
	}
	return m, path, nil
}

func summarize(m *manifest.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[*] Прогон %s от %s\n", m.RunID, m.Created.Format(time.DateTime))
	fmt.Fprintf(&b, "[*] Источник: %s, пресет %s, %dx%d\n", m.Source, m.Preset, m.Width, m.Height)

	var phases []string
	counts := map[string]int{}
	files := 0
	for _, f := range m.Frames {
		if counts[f.Phase] == 0 {
			phases = append(phases, f.Phase)
		}
		counts[f.Phase]++
		if f.File != "" {
			files++
		}
	}
	fmt.Fprintf(&b, "[*] Кадров: %d (PNG: %d)\n", len(m.Frames), files)
	for _, p := range phases {
		fmt.Fprintf(&b, "    %s: %d\n", p, counts[p])
	}
	return b.String()
}
