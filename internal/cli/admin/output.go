package admin

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// outputFormat is a flag value restricted to text or json.
type outputFormat string

func (o *outputFormat) String() string { return string(*o) }

func (o *outputFormat) Set(v string) error {
	switch v {
	case outputText, outputJSON:
		*o = outputFormat(v)
		return nil
	}
	return fmt.Errorf("must be %q or %q", outputText, outputJSON)
}

func (o *outputFormat) Type() string { return "format" }

func addOutputFlag(fs *pflag.FlagSet) {
	f := outputFormat(outputText)
	fs.VarP(&f, "output", "o", "Output format (text or json)")
}

func wantsJSON(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("output")
	return f != nil && f.Value.String() == outputJSON
}
