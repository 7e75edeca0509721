package cli

import "github.com/spf13/cobra"

// AddShortcuts adds short aliases for the most used commands.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLsShortcut())
	rootCmd.AddCommand(newDownloadShortcut())
}

// newLsShortcut is 'spaces' under a shorter name.
func newLsShortcut() *cobra.Command {
	cmd := newSpacesCmd()
	cmd.Use = "ls"
	cmd.Short = "List job spaces (shortcut for 'spaces')"
	return cmd
}

// newDownloadShortcut is 'job download' at the top level.
func newDownloadShortcut() *cobra.Command {
	cmd := newJobDownloadCmd()
	cmd.Short = "Download job results (shortcut for 'job download')"
	return cmd
}
