package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/slplayer/sltemplate/pkg/bundle"
	"github.com/slplayer/sltemplate/pkg/netcache"
	"github.com/slplayer/sltemplate/pkg/outcheck"
	"github.com/slplayer/sltemplate/pkg/preview"
	"github.com/slplayer/sltemplate/pkg/sltmpl"
	"github.com/slplayer/sltemplate/pkg/starlark"
	"github.com/slplayer/sltemplate/pkg/templates"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	verbose     bool
	globalsFile string
	cacheDir    string
)

var rootCmd = cobra.Command{
	Use:           "sltmpl",
	Short:         "Render ::tag:: templates from files, bundles or a preview server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
		if globalsFile == "" {
			return nil
		}
		globals, err := loadData(cmd.Context(), globalsFile)
		if err != nil {
			return fmt.Errorf("loading globals: %w", err)
		}
		sltmpl.DefaultGlobals.SetAll(globals)
		slog.Debug("loaded globals", "file", globalsFile, "keys", sltmpl.DefaultGlobals.Keys())
		return nil
	},
}

func newCache() (*netcache.Cache, error) {
	dir := cacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locating cache directory: %w", err)
		}
		dir = filepath.Join(base, "sltmpl")
	}
	return netcache.New(dir), nil
}

// readRef reads a local path or an http(s) URL.
func readRef(ctx context.Context, ref string) ([]byte, error) {
	if !netcache.IsURL(ref) {
		return os.ReadFile(ref)
	}
	c, err := newCache()
	if err != nil {
		return nil, err
	}
	return c.ReadAll(ctx, ref)
}

// loadData decodes a YAML or JSON document into a render context.
func loadData(ctx context.Context, ref string) (sltmpl.Context, error) {
	raw, err := readRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	data := sltmpl.Context{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ref, err)
	}
	// A null document decodes to a nil map.
	if data == nil {
		data = sltmpl.Context{}
	}
	return data, nil
}

func loadTemplate(ctx context.Context, ref string) (*sltmpl.Template, error) {
	raw, err := readRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	tpl, err := sltmpl.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return tpl, nil
}

var renderFlags struct {
	data   string
	macros string
	format string
	output string
}

var renderCmd = cobra.Command{
	Use:   "render TEMPLATE",
	Short: "Render a template file or URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tpl, err := loadTemplate(ctx, args[0])
		if err != nil {
			return err
		}

		data := sltmpl.Context{}
		if renderFlags.data != "" {
			if data, err = loadData(ctx, renderFlags.data); err != nil {
				return err
			}
		}

		env := &sltmpl.Env{Globals: sltmpl.DefaultGlobals}
		if renderFlags.macros != "" {
			src, err := readRef(ctx, renderFlags.macros)
			if err != nil {
				return fmt.Errorf("reading macros: %w", err)
			}
			script := starlark.NewScript()
			if _, err := script.ExecFile(renderFlags.macros, src); err != nil {
				return err
			}
			env.Macros = script.Macros()
		}

		text, err := tpl.RenderEnv(data, env)
		if err != nil {
			return err
		}
		if err := outcheck.Check(renderFlags.format, text); err != nil {
			return err
		}

		if renderFlags.output == "" || renderFlags.output == "-" {
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		}
		return writeOutput(renderFlags.output, text)
	},
}

var checkCmd = cobra.Command{
	Use:   "check TEMPLATE...",
	Short: "Parse templates and list the names they reference",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		out := cmd.OutOrStdout()
		for _, ref := range args {
			tpl, err := loadTemplate(cmd.Context(), ref)
			if err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s: %v\n", ref, err)
				continue
			}
			vars, macros := tpl.Names()
			fmt.Fprintf(out, "ok   %s vars=[%s] macros=[%s]\n", ref, strings.Join(vars, " "), strings.Join(macros, " "))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d templates failed", failed, len(args))
		}
		return nil
	},
}

var astCmd = cobra.Command{
	Use:   "ast TEMPLATE",
	Short: "Print the parsed tree of a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := loadTemplate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), sltmpl.Pretty(tpl))
		return nil
	},
}

var bundleFlags struct {
	only   []string
	outDir string
}

var bundleCmd = cobra.Command{
	Use:   "bundle FILE",
	Short: "Render every template of a bundle to its output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBundle(args[0])
		if err != nil {
			return err
		}

		var results []bundle.Result
		if len(bundleFlags.only) == 0 {
			if results, err = b.RenderAll(ctx); err != nil {
				return err
			}
		} else {
			for _, name := range bundleFlags.only {
				r, err := b.Render(ctx, name, nil)
				if err != nil {
					return err
				}
				results = append(results, *r)
			}
		}

		written, err := b.Write(results, bundleFlags.outDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Output == "" {
				fmt.Fprintf(out, "--- %s\n%s\n", r.Name, r.Text)
			}
		}
		for _, p := range written {
			fmt.Fprintf(out, "wrote %s\n", p)
		}
		slog.Info("bundle rendered", "bundle", b.Name, "templates", len(results), "written", len(written))
		return nil
	},
}

func openBundle(path string) (*bundle.Bundle, error) {
	b, err := bundle.Load(path)
	if err != nil {
		return nil, err
	}
	if b.Cache, err = newCache(); err != nil {
		return nil, err
	}
	return b, nil
}

var newFlags struct {
	set         []string
	data        string
	output      string
	templateDir string
}

var newCmd = cobra.Command{
	Use:   "new [NAME]",
	Short: "Render a built-in starter template, or list them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if newFlags.templateDir != "" {
			templates.SetTemplateDir(newFlags.templateDir)
		}
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, name := range templates.Names() {
				tpl, err := templates.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-12s %s\n", name, tpl.Description)
			}
			return nil
		}

		tpl, err := templates.Get(args[0])
		if err != nil {
			return err
		}
		params := map[string]any{}
		if newFlags.data != "" {
			data, err := loadData(cmd.Context(), newFlags.data)
			if err != nil {
				return err
			}
			params = data
		}
		for _, kv := range newFlags.set {
			key, val, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --set %q (want KEY=VALUE)", kv)
			}
			params[key] = val
		}

		text, err := tpl.Execute(params, &sltmpl.Env{Globals: sltmpl.DefaultGlobals})
		if err != nil {
			return err
		}
		if newFlags.output == "" || newFlags.output == "-" {
			_, err = io.WriteString(out, text)
			return err
		}
		return writeOutput(newFlags.output, text)
	},
}

// writeOutput writes text to path, creating parent directories. The close
// error is returned since it may carry a failed flush.
func writeOutput(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var serveFlags struct {
	bundle string
	addr   string
}

var serveCmd = cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP preview server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var b *bundle.Bundle
		if serveFlags.bundle != "" {
			var err error
			if b, err = openBundle(serveFlags.bundle); err != nil {
				return err
			}
		}
		return preview.New(b).Run(serveFlags.addr)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globalsFile, "globals", "", "YAML or JSON file of global values")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Directory for downloaded templates (default: user cache dir)")

	renderCmd.Flags().StringVarP(&renderFlags.data, "data", "d", "", "YAML or JSON file used as the render context")
	renderCmd.Flags().StringVarP(&renderFlags.macros, "macros", "m", "", "Starlark file whose functions become macros")
	renderCmd.Flags().StringVarP(&renderFlags.format, "format", "f", "", "Check output as one of: "+strings.Join(outcheck.Formats(), ", "))
	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "", "Write output to a file instead of stdout")
	rootCmd.AddCommand(&renderCmd)

	rootCmd.AddCommand(&checkCmd)
	rootCmd.AddCommand(&astCmd)

	bundleCmd.Flags().StringArrayVar(&bundleFlags.only, "only", nil, "Render only the named template; can be repeated")
	bundleCmd.Flags().StringVar(&bundleFlags.outDir, "out-dir", "", "Resolve outputs against this directory instead of the bundle's")
	rootCmd.AddCommand(&bundleCmd)

	newCmd.Flags().StringArrayVar(&newFlags.set, "set", nil, "Set an argument as KEY=VALUE; can be repeated")
	newCmd.Flags().StringVarP(&newFlags.data, "data", "d", "", "YAML or JSON file of arguments")
	newCmd.Flags().StringVarP(&newFlags.output, "output", "o", "", "Write output to a file instead of stdout")
	newCmd.Flags().StringVar(&newFlags.templateDir, "template-dir", "", "Directory of NAME.yaml files overriding the built-in templates")
	rootCmd.AddCommand(&newCmd)

	serveCmd.Flags().StringVar(&serveFlags.bundle, "bundle", "", "Bundle file whose templates are served")
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "Listen address")
	rootCmd.AddCommand(&serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
