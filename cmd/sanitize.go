package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cppla/folio/sanitizer"
)

var (
	sanitizeAllowVideo bool
	sanitizeMaxLength  int
)

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize <inline|markdown|preview> [file]",
	Short: "Sanitize a file or stdin the way the site does",
	Long: `Sanitize a file, or stdin when no file is given, and print the HTML.

Modes:
  inline    comment HTML; iframes only with --allow-video
  markdown  post Markdown (Phase A convert, Phase B scrub)
  preview   editor preview

Settings default to the sanitizer section of the config.`,
	Example: `  folio sanitize inline comment.html --allow-video
  echo '# Hi <script>x()</script>' | folio sanitize markdown`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"inline", "markdown", "preview"},
	RunE:      runSanitize,
}

func init() {
	sanitizeCmd.Flags().BoolVar(&sanitizeAllowVideo, "allow-video", false, "keep allow-listed iframes in inline mode (default sanitizer.allow_video_in_comments)")
	sanitizeCmd.Flags().IntVar(&sanitizeMaxLength, "max-length", 0, "reject input longer than this many characters (default sanitizer.max_input_length)")
	rootCmd.AddCommand(sanitizeCmd)
}

func runSanitize(cmd *cobra.Command, args []string) error {
	mode := args[0]
	switch mode {
	case "inline", "markdown", "preview":
	default:
		return fmt.Errorf("unknown mode %q: want inline, markdown or preview", mode)
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	allowVideo := cfg.Sanitizer.AllowVideoInComments
	if cmd.Flags().Changed("allow-video") {
		allowVideo = sanitizeAllowVideo
	}
	maxLength := cfg.Sanitizer.MaxInputLength
	if cmd.Flags().Changed("max-length") {
		maxLength = sanitizeMaxLength
	}

	opts := []sanitizer.Option{
		sanitizer.WithAllowVideo(allowVideo),
		sanitizer.WithMaxInputLength(maxLength),
		sanitizer.WithMarkdownEngine(sanitizer.ParseMarkdownEngine(cfg.Sanitizer.MarkdownEngine)),
	}
	if len(cfg.Sanitizer.AllowedURLSchemes) > 0 {
		opts = append(opts, sanitizer.WithURLSchemes(cfg.Sanitizer.AllowedURLSchemes...))
	}
	s := sanitizer.New(opts...)

	var out string
	switch mode {
	case "inline":
		out, err = s.Inline(string(b))
	case "markdown":
		out, err = s.Markdown(string(b))
	case "preview":
		out, err = s.Preview(string(b))
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
