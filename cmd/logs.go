package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/grovetools/basin/cli"
	"github.com/grovetools/basin/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the engine log",
		Long: `Shows today's log file for a component. Use 'basin paths' to find the
log directory.

Examples:
  # Follow the engine log
  basin logs -f

  # Last 50 lines of the watcher log
  basin logs --component watcher --tail 50
`,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().String("component", "basin", "Component whose log to show")
	cmd.Flags().String("date", "", "Day to show, as YYYY-MM-DD (default: today)")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	component, _ := cmd.Flags().GetString("component")
	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")
	date, _ := cmd.Flags().GetString("date")
	raw := cli.GetOptions(cmd).JSONOutput

	day := time.Now()
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
		day = parsed
	}

	path := logging.LogFilePath(component, day)
	w := cmd.OutOrStdout()
	emit := func(line string) {
		if raw {
			fmt.Fprintln(w, line)
			return
		}
		fmt.Fprintln(w, formatLogLine(line))
	}

	lines, offset, err := lastLines(path, tailLines)
	if err != nil && !(follow && os.IsNotExist(err)) {
		return fmt.Errorf("failed to read log %s: %w", path, err)
	}
	for _, line := range lines {
		emit(line)
	}
	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow log %s: %w", path, err)
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				continue
			}
			emit(line.Text)
		case <-ctx.Done():
			return t.Stop()
		}
	}
}

// lastLines returns the last n lines of path (all when n < 0) and the
// offset at which following should resume.
func lastLines(path string, n int) ([]string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var lines []string
	var offset int64
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if strings.HasSuffix(line, "\n") {
			offset += int64(len(line))
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}

	if n >= 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, offset, nil
}

// formatLogLine renders a JSON log line as "time level [component] msg k=v".
// Text lines pass through unchanged.
func formatLogLine(line string) string {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line
	}

	var b strings.Builder
	if ts, ok := entry["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			ts = parsed.Format("15:04:05")
		}
		b.WriteString(ts + " ")
	}
	if level, ok := entry["level"].(string); ok {
		b.WriteString(fmt.Sprintf("%-5s ", strings.ToUpper(level)))
	}
	if component, ok := entry["component"].(string); ok {
		b.WriteString("[" + component + "] ")
	}
	if msg, ok := entry["msg"].(string); ok {
		b.WriteString(msg)
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		switch k {
		case "time", "level", "component", "msg":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", k, entry[k]))
	}
	return b.String()
}
