// Package report renders what pipfetch tells the user: the host summary
// printed by -i and the closing notes of a download run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/pipfetch/pipfetch/pkg/fetch"
	"github.com/pipfetch/pipfetch/pkg/toolchain"
)

// Format selects how Info is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ExampleCommand is the sample invocation shown after the host summary.
const ExampleCommand = "pipfetch -r requirements.txt -d ./packages"

// ParseFormat validates a --format value. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatYAML, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, yaml or json)", s)
	}
}

// Info is the host summary.
type Info struct {
	Platform      string `json:"platform"`
	Machine       string `json:"machine"`
	PythonVersion string `json:"python_version"`
	PipVersion    string `json:"pip_version"`
	Manager       string `json:"manager"`
	ManagerPath   string `json:"manager_path,omitempty"`
	Example       string `json:"example"`
}

// NewInfo summarises a probed environment.
func NewInfo(env *toolchain.Environment) Info {
	return Info{
		Platform:      env.Host.System,
		Machine:       env.Host.Machine,
		PythonVersion: env.PythonVersion(),
		PipVersion:    env.PipVersion(),
		Manager:       env.Manager,
		ManagerPath:   env.ManagerPath,
		Example:       ExampleCommand,
	}
}

// WriteInfo renders info to w in the given format.
func WriteInfo(w io.Writer, info Info, format Format) error {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("marshaling info: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatJSON:
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling info: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "", FormatText:
		return writeInfoText(w, info)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeInfoText(w io.Writer, info Info) error {
	st := newStyles(w)

	var b strings.Builder
	b.WriteString(st.title.Render("Your current system information is:") + "\n")
	b.WriteString(st.key.Render("Platform:") + " " + st.value.Render(info.Platform) + "\n")
	b.WriteString(st.key.Render("Python version:") + " " + st.value.Render(info.PythonVersion) + "\n")
	b.WriteString(st.key.Render("Pip version:") + " " + st.value.Render(info.PipVersion) + "\n")
	b.WriteString("\n")
	b.WriteString(st.dim.Render("An example command to run this tool could be:") + "\n")
	b.WriteString(st.command.Render(info.Example) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteDownloadSummary prints the closing notes of a download run: the
// destination, per-tag counts, any warnings, and how to install offline.
func WriteDownloadSummary(w io.Writer, dir string, rep *fetch.Report) error {
	st := newStyles(w)

	var b strings.Builder
	if allFailed(rep) {
		fmt.Fprintf(&b, "%s\n", st.warning.Render("Download to "+dir+" completed with warnings: no tag could be downloaded."))
	} else {
		fmt.Fprintf(&b, "%s\n", st.success.Render("Successfully downloaded packages to "+dir+"."))
	}
	if rep != nil {
		fmt.Fprintf(&b, "%s\n", st.dim.Render(fmt.Sprintf("%d tags: %d binary, %d source, %d failed",
			len(rep.Results), rep.Count(fetch.ModeBinary), rep.Count(fetch.ModeSource), rep.Count(fetch.ModeFailed))))
		for _, warn := range rep.Warnings {
			fmt.Fprintf(&b, "%s\n", st.warning.Render("warning: "+warn.Error()))
		}
	}
	b.WriteString("Example usage to perform installation of local packages:\n")
	fmt.Fprintf(&b, "\t%s\n", st.command.Render(InstallCommand(dir)))
	b.WriteString(st.dim.Render("--find-links makes pip look for distributions in the given directory instead of PyPI.") + "\n")
	b.WriteString(st.dim.Render("--no-index stops pip from contacting any remote index.") + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func allFailed(rep *fetch.Report) bool {
	return rep != nil && len(rep.Results) > 0 && rep.Count(fetch.ModeFailed) == len(rep.Results)
}

// InstallCommand is the offline install hint for packages in dir.
func InstallCommand(dir string) string {
	return "pip install -r requirements.txt --find-links " + dir + " --no-index"
}
