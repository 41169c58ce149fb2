// Package cli holds helpers shared by the outreach and outreachd binaries.
package cli

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvAnnotation marks a flag whose value falls back to an environment
// variable. The schema reports it so wrappers can set the variable instead.
const EnvAnnotation = "outreach_env"

const helpJSONFlag = "help-json"

// FlagSchema describes one flag in --help-json output.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Env         string `json:"env,omitempty"`
	Required    bool   `json:"required"`
	Inherited   bool   `json:"inherited,omitempty"`
}

// CommandSchema describes a command and its subtree.
type CommandSchema struct {
	Name        string          `json:"name"`
	Use         string          `json:"use,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Example     string          `json:"example,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// BindEnv records env as the fallback for the named persistent or local
// flag of cmd.
func BindEnv(cmd *cobra.Command, flag, env string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if f == nil {
		return
	}
	if f.Annotations == nil {
		f.Annotations = map[string][]string{}
	}
	f.Annotations[EnvAnnotation] = []string{env}
}

// GenerateSchema walks cmd and its visible subcommands.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Name:        cmd.Name(),
		Use:         cmd.Use,
		Aliases:     cmd.Aliases,
		Description: cmd.Short,
		Long:        cmd.Long,
		Example:     cmd.Example,
	}

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == helpJSONFlag || f.Name == "help" {
			return
		}
		s.Flags = append(s.Flags, describeFlag(f, false))
	})
	cmd.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == helpJSONFlag || f.Name == "help" {
			return
		}
		s.Flags = append(s.Flags, describeFlag(f, true))
	})
	sort.SliceStable(s.Flags, func(i, j int) bool {
		if s.Flags[i].Inherited != s.Flags[j].Inherited {
			return !s.Flags[i].Inherited
		}
		return s.Flags[i].Name < s.Flags[j].Name
	})

	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		s.Subcommands = append(s.Subcommands, GenerateSchema(sub))
	}
	return s
}

func describeFlag(f *pflag.Flag, inherited bool) FlagSchema {
	fs := FlagSchema{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
		Description: f.Usage,
		Inherited:   inherited,
	}
	if env := f.Annotations[EnvAnnotation]; len(env) > 0 {
		fs.Env = env[0]
	}
	if req := f.Annotations[cobra.BashCompOneRequiredFlag]; len(req) > 0 && req[0] == "true" {
		fs.Required = true
	}
	return fs
}

// WriteSchema encodes the schema of cmd to w as indented JSON.
func WriteSchema(w io.Writer, cmd *cobra.Command) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(GenerateSchema(cmd))
}

// AddHelpJSONFlag registers --help-json on root so every subcommand accepts it.
func AddHelpJSONFlag(root *cobra.Command) {
	root.PersistentFlags().Bool(helpJSONFlag, false, "Print the command schema as JSON")
}

// CheckHelpJSON prints the schema of the command named in os.Args and exits
// when --help-json is present. It runs before Execute so positional-arg
// validation does not reject the call.
func CheckHelpJSON(root *cobra.Command) {
	for i, arg := range os.Args {
		if arg != "--"+helpJSONFlag {
			continue
		}
		if err := WriteSchema(os.Stdout, resolveCommand(root, os.Args[1:i])); err != nil {
			os.Stderr.WriteString("help-json: " + err.Error() + "\n")
			os.Exit(1)
		}
		os.Exit(0)
	}
}

// resolveCommand follows leading non-flag args down the command tree.
func resolveCommand(cmd *cobra.Command, args []string) *cobra.Command {
	for _, arg := range args {
		var next *cobra.Command
		for _, sub := range cmd.Commands() {
			if sub.Name() == arg || sub.HasAlias(arg) {
				next = sub
				break
			}
		}
		if next == nil {
			return cmd
		}
		cmd = next
	}
	return cmd
}
