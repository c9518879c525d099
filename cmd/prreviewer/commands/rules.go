package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JNZader/prreviewer/internal/analyzer"
	"github.com/JNZader/prreviewer/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate the rule catalog",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured rules",
	Long: `List the architecture rules, security checks and coding standards
of the configured catalog (rules.file, or the built-in rules).`,
	Args: cobra.NoArgs,
	RunE: runRulesList,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a rule document",
	Long: `Parse and compile a rule document and report the first error.
Without an argument the configured catalog is validated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesValidate,
}

var rulesDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Print the built-in rule document",
	Long: `Print the built-in rule document, a starting point for a custom
rules.file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := rules.DefaultDocument()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesValidateCmd, rulesDefaultCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	loader := rules.NewLoader(appConfig.Rules.File)
	catalog, err := loader.Load()
	if err != nil {
		return err
	}
	printCatalog(cmd.OutOrStdout(), loader.Source(), catalog)
	return nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	path := appConfig.Rules.File
	if len(args) == 1 {
		path = args[0]
	}
	loader := rules.NewLoader(path)
	catalog, err := loader.Load()
	if err != nil {
		return fmt.Errorf("%s: %w", loader.Source(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d architecture rules, %d security checks)\n",
		loader.Source(), len(catalog.Architecture), securityCheckCount(catalog))
	return nil
}

func securityCheckCount(c *rules.Catalog) int {
	return len(c.Security.SQLInjection) + len(c.Security.Secrets) + len(c.Security.InsecureConfigs)
}

func printCatalog(w io.Writer, source string, c *rules.Catalog) {
	fmt.Fprintf(w, "# Rules from %s\n\n", source)

	fmt.Fprintln(w, "Architecture:")
	for _, r := range c.Architecture {
		scope := "*"
		if r.Scope != nil {
			scope = r.Scope.String()
		}
		fmt.Fprintf(w, "  %-28s %-18s %s\n", r.Name, r.Kind, scope)
	}

	fmt.Fprintln(w, "\nSecurity:")
	fmt.Fprintf(w, "  %-28s %d patterns\n", analyzer.RuleSQLInjection, len(c.Security.SQLInjection))
	secrets := make([]string, 0, len(c.Security.Secrets))
	for _, s := range c.Security.Secrets {
		secrets = append(secrets, s.Type)
	}
	sort.Strings(secrets)
	fmt.Fprintf(w, "  %-28s %s\n", analyzer.RuleHardcodedSecret, strings.Join(secrets, ", "))
	for _, ic := range c.Security.InsecureConfigs {
		fmt.Fprintf(w, "  %-28s %s\n", analyzer.RuleInsecureConfigPrefix+ic.Name, ic.Message)
	}

	fmt.Fprintln(w, "\nCoding standards:")
	fmt.Fprintf(w, "  %-28s %d\n", analyzer.RuleMaxMethodLength, c.Standards.MaxMethodLength)
	fmt.Fprintf(w, "  %-28s %d\n", analyzer.RuleMaxNestingDepth, c.Standards.MaxNestingDepth)
}
