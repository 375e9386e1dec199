package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	vk "github.com/vulkan-go/vulkan"

	"github.com/dreamworksanimation/vdbview"
)

func init() {
	// GLFW and Vulkan surface calls must stay on the startup thread.
	runtime.LockOSThread()
}

var sampleCounts = map[string]vk.SampleCountFlagBits{
	"1x":  vk.SampleCount1Bit,
	"2x":  vk.SampleCount2Bit,
	"4x":  vk.SampleCount4Bit,
	"8x":  vk.SampleCount8Bit,
	"16x": vk.SampleCount16Bit,
}

func parseSampleCount(s string) (vk.SampleCountFlagBits, error) {
	if count, ok := sampleCounts[strings.ToLower(s)]; ok {
		return count, nil
	}
	return 0, fmt.Errorf("invalid multisample count %q (expected one of 1x, 2x, 4x, 8x, 16x)", s)
}

func main() {
	var (
		msaa        string
		backend     string
		printInfo   bool
		showVersion bool
	)

	root := &cobra.Command{
		Use:   "vdbview file.vdb [file.vdb ...]",
		Short: "Interactive viewer for OpenVDB grid files",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		SilenceUsage: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(vdbview.VersionString())
				return nil
			}

			samples, err := parseSampleCount(msaa)
			if err != nil {
				return err
			}

			switch strings.ToLower(backend) {
			case "vulkan":
			case "opengl":
				return fmt.Errorf("the opengl backend has been retired; use --backend=vulkan")
			default:
				return fmt.Errorf("unknown backend %q (expected vulkan)", backend)
			}

			grids, err := vdbview.LoadGrids(args)
			if err != nil {
				return err
			}

			if printInfo {
				for _, g := range grids {
					fmt.Printf("%s:\n", g.FileName)
					for _, line := range g.InfoStrings() {
						fmt.Printf("  %s\n", line)
					}
				}
				return nil
			}

			// Errors past this point are runtime failures, not usage
			// mistakes.
			cmd.SilenceUsage = true

			viewer, err := vdbview.Open(800, 600, samples)
			if err != nil {
				return err
			}
			defer viewer.Close()

			if err := viewer.SetGrids(grids); err != nil {
				return err
			}
			return viewer.Run()
		},
	}

	root.Flags().StringVarP(&msaa, "msaa", "s", "4x", "multisample count (1x, 2x, 4x, 8x, 16x)")
	root.Flags().StringVar(&backend, "backend", "vulkan", "rendering backend")
	root.Flags().BoolVarP(&printInfo, "info", "i", false, "print grid info and exit without opening a window")
	root.Flags().BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
