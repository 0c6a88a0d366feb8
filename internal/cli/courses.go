package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LucaSlade/ME405-Romulus/internal/mission"
)

var coursesDump string

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List the built-in courses",
	Long: `List the preset courses compiled into the binary, one block per
course with each leg's guard parameters.

--dump prints a preset as YAML under a "course:" key, ready to paste
into a config file and edit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if coursesDump != "" {
			course, ok := mission.PresetByName(coursesDump)
			if !ok {
				return fmt.Errorf("unknown course %q (have: %s)", coursesDump, strings.Join(presetNames(), ", "))
			}
			return dumpCourse(w, course)
		}
		renderCourses(w, mission.Presets())
		return nil
	},
}

func init() {
	coursesCmd.Flags().StringVar(&coursesDump, "dump", "", "Print the named preset as config-file YAML")
	rootCmd.AddCommand(coursesCmd)
}

// dumpCourse writes the course as YAML nested under the config key it
// belongs to.
func dumpCourse(w io.Writer, course mission.Course) error {
	data, err := yaml.Marshal(map[string]mission.Course{"course": course})
	if err != nil {
		return fmt.Errorf("marshaling course: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// renderCourses prints one block per preset.
func renderCourses(w io.Writer, courses []mission.Course) {
	for i, c := range courses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s (%d phases) ==\n", c.Name, len(c.Phases))
		for _, p := range c.Phases {
			fmt.Fprintf(w, "  %-26s %-15s %s\n", p.ID, p.Kind, phaseDetail(&p))
		}
	}
}

// phaseDetail summarizes a leg's guard parameters for the listing.
func phaseDetail(p *mission.Phase) string {
	var detail string
	switch p.Kind {
	case mission.KindStandby:
		detail = "waits for start"
	case mission.KindHeadingTurn:
		if p.HeadingRelative {
			detail = fmt.Sprintf("by %+.0f°", p.HeadingDeg)
		} else {
			detail = fmt.Sprintf("to %.0f°", p.HeadingDeg)
		}
	case mission.KindLineUntilBump:
		detail = fmt.Sprintf("@ %.0f%% until bump -> %s", p.BaseEffort, p.OnBump)
	default:
		detail = fmt.Sprintf("%d ticks @ %.0f%%", p.DistanceTicks, p.BaseEffort)
	}
	if p.TimeoutTicks > 0 {
		detail += fmt.Sprintf(", timeout %d", p.TimeoutTicks)
	}
	return detail
}
