package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"fractalexplorer/coordinator"
	"fractalexplorer/explorer"
	"fractalexplorer/export"
	"fractalexplorer/favourites"
	"fractalexplorer/fractal"
	"fractalexplorer/misc"
	"fractalexplorer/server"
	"fractalexplorer/worker"

	"github.com/spf13/cobra"
)

func renderCmd() *cobra.Command {
	var (
		constant                               string
		frames, height, maxIterations, width   int
		imagEnd, imagStart, realEnd, realStart float64
		mode, out                              string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one image, or the frames of a zoom from the default view, to files",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			// At this point usage information has already been printed if obviously incorrect.
			cmd.SilenceUsage = true

			settings := loadExplorerSettings()
			flags := cmd.Flags()
			if !flags.Changed("realStart") {
				realStart = settings.RealStart
			}
			if !flags.Changed("realEnd") {
				realEnd = settings.RealEnd
			}
			if !flags.Changed("imagStart") {
				imagStart = settings.ImagStart
			}
			if !flags.Changed("imagEnd") {
				imagEnd = settings.ImagEnd
			}
			if !flags.Changed("width") {
				width = settings.Width
			}
			if !flags.Changed("height") {
				height = settings.Height
			}
			if !flags.Changed("maxIterations") {
				maxIterations = settings.MaxIterations
			}
			if !flags.Changed("constant") {
				constant = settings.JuliaConstant
			}

			if err := settings.CheckSize(width, height); err != nil {
				return err
			}
			request, err := buildRequest(mode, constant, maxIterations, realStart, realEnd, imagStart, imagEnd, width, height)
			if err != nil {
				return err
			}
			if out == "" {
				out = defaultOutput(settings, request)
			}

			generator := coordinator.NewGenerator(loadCoordinatorSettings())
			defer generator.Close()

			if frames <= 1 {
				img, err := generator.Render(cmd.Context(), request.Mode.String(), request)
				if err != nil {
					return err
				}
				if err := export.WriteFile(out, img); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}

			from, err := settings.Viewport()
			if err != nil {
				return err
			}
			from.Width, from.Height = width, height
			viewports, err := explorer.Transition(from, request.Viewport, frames)
			if err != nil {
				return err
			}
			ext := filepath.Ext(out)
			base := strings.TrimSuffix(out, ext)
			for i, viewport := range viewports {
				frame := request
				frame.Viewport = viewport
				img, err := generator.Render(cmd.Context(), request.Mode.String(), frame)
				if err != nil {
					return err
				}
				path := fmt.Sprintf("%s-%03d%s", base, i, ext)
				if err := export.WriteFile(path, img); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", fractal.Mandelbrot.String(), "mandelbrot or julia")
	cmd.Flags().StringVar(&constant, "constant", "", "julia constant as <real>:<imag>")
	cmd.Flags().Float64Var(&realStart, "realStart", 0, "smallest real value")
	cmd.Flags().Float64Var(&realEnd, "realEnd", 0, "largest real value")
	cmd.Flags().Float64Var(&imagStart, "imagStart", 0, "smallest imaginary value")
	cmd.Flags().Float64Var(&imagEnd, "imagEnd", 0, "largest imaginary value")
	cmd.Flags().IntVar(&width, "width", 0, "width of the image")
	cmd.Flags().IntVar(&height, "height", 0, "height of the image")
	cmd.Flags().IntVar(&maxIterations, "maxIterations", 0, "iterations to run for each point")
	cmd.Flags().IntVar(&frames, "frames", 1, "number of frames zooming from the default view to the requested one")
	cmd.Flags().StringVar(&out, "out", "", "image file, the extension picks png, bmp or tiff")
	return cmd
}

func buildRequest(mode string, constant string, maxIterations int, realStart float64, realEnd float64, imagStart float64, imagEnd float64, width int, height int) (fractal.RenderRequest, error) {
	m, err := fractal.ParseMode(mode)
	if err != nil {
		return fractal.RenderRequest{}, err
	}
	if maxIterations > explorer.MaxIterationsLimit {
		return fractal.RenderRequest{}, fmt.Errorf("%w: %d is above %d", fractal.ErrInvalidIterationCount, maxIterations, explorer.MaxIterationsLimit)
	}
	viewport, err := fractal.NewViewport(realStart, realEnd, imagStart, imagEnd, width, height)
	if err != nil {
		return fractal.RenderRequest{}, err
	}
	if m == fractal.Mandelbrot {
		return fractal.NewMandelbrotRequest(viewport, maxIterations)
	}
	c, err := favourites.ParseLine(constant)
	if err != nil {
		return fractal.RenderRequest{}, fmt.Errorf("%w: %v", fractal.ErrInvalidConstant, err)
	}
	return fractal.NewJuliaRequest(viewport, maxIterations, c)
}

// defaultOutput names Julia renders after their constant in the export directory
func defaultOutput(settings explorer.Settings, request fractal.RenderRequest) string {
	format, err := export.ParseFormat(settings.ExportFormat)
	if err != nil {
		format = export.PNG
	}
	if request.Mode == fractal.Julia {
		return filepath.Join(settings.ExportDirectory, export.FileName(request.Constant, format))
	}
	return filepath.Join(settings.ExportDirectory, "mandelbrot"+format.Extension())
}

func serveCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve explorer sessions over a websocket, rendering with local workers only",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			generator := coordinator.NewGenerator(loadCoordinatorSettings())
			defer generator.Close()

			s, err := server.NewServer(loadExplorerSettings(), generator, nil)
			if err != nil {
				return err
			}
			return s.ListenAndServe(cmd.Context(), address)
		},
	}
	cmd.Flags().StringVar(&address, "address", "localhost:8080", "address to serve http on")
	return cmd
}

func coordinatorCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Serve explorer sessions and hand render tasks to remote workers",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			settings := loadCoordinatorSettings()
			generator := coordinator.NewGenerator(settings)
			defer generator.Close()

			c := coordinator.NewCoordinator(settings, generator)
			if err := c.Run(); err != nil {
				return err
			}
			defer func() {
				if err := c.Stop(); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
			}()

			s, err := server.NewServer(loadExplorerSettings(), generator, nil)
			if err != nil {
				return err
			}
			return s.ListenAndServe(cmd.Context(), address)
		},
	}
	cmd.Flags().StringVar(&address, "address", "localhost:8080", "address to serve http on")
	return cmd
}

func workerCmd() *cobra.Command {
	var (
		coordinatorAddress, settingsFile string
		public                           bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process render tasks for a coordinator",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			settings := worker.Settings{}
			if settingsFile != "" {
				settings = worker.NewSettings(settingsFile)
			}
			if cmd.Flags().Changed("coordinator") || settings.CoordinatorAddress == "" {
				settings.CoordinatorAddress = coordinatorAddress
			}
			if public {
				settings.Host = misc.GetLocalAddress()
			}

			w, err := worker.NewWorker(settings)
			if err != nil {
				return err
			}
			done := make(chan struct{})
			go func() {
				w.Run()
				close(done)
			}()

			select {
			case <-done:
			case <-cmd.Context().Done():
				w.Stop()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&settingsFile, "workerSettings", "", "json file with worker settings")
	cmd.Flags().StringVar(&coordinatorAddress, "coordinator", "localhost:51000", "address of the coordinator")
	cmd.Flags().BoolVar(&public, "public", false, "listen on the first non-loopback address instead of localhost")
	return cmd
}

func favouritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favourites",
		Short: "List or add saved Julia constants",
	}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			settings := loadExplorerSettings()
			store, err := favourites.Load(settings.FavouritesFile)
			if err != nil {
				return err
			}
			for i, c := range store.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", i, c, favourites.FormatLine(c))
			}
			if store.Skipped() > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d malformed lines in %s\n", store.Skipped(), store.Path())
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <real>:<imag>",
		Short: "Append a constant to the favourites file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := favourites.ParseLine(args[0])
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			settings := loadExplorerSettings()
			store, err := favourites.Load(settings.FavouritesFile)
			if err != nil {
				return err
			}
			if err := store.Add(c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c)
			return nil
		},
	}

	cmd.AddCommand(list, add)
	return cmd
}
