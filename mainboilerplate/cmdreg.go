package mainboilerplate

import "github.com/jessevdk/go-flags"

// AddCommandFunc adds a sub-command to its parent Command.
type AddCommandFunc func(*flags.Command) error

// CommandRegistry collects sub-commands by the dotted path of their parent,
// allowing the files of a program to register their own commands from init.
// The root command has the empty path "", and a sub-command "sub" of
// top-level command "cmd" is registered under path "cmd".
type CommandRegistry map[string][]AddCommandFunc

// NewCommandRegistry returns an empty CommandRegistry.
func NewCommandRegistry() CommandRegistry { return make(CommandRegistry) }

// AddCommand registers a go-flags command under |parentPath|.
func (cr CommandRegistry) AddCommand(parentPath, command, short, long string, data interface{}) {
	cr[parentPath] = append(cr[parentPath], func(cmd *flags.Command) error {
		var _, err = cmd.AddCommand(command, short, long, data)
		return err
	})
}

// AddCommands adds commands registered under |path| to |cmd|, and then
// recursively adds commands registered beneath each of its sub-commands.
func (cr CommandRegistry) AddCommands(path string, cmd *flags.Command) error {
	for _, fn := range cr[path] {
		if err := fn(cmd); err != nil {
			return err
		}
	}
	for _, sub := range cmd.Commands() {
		var subPath = sub.Name
		if path != "" {
			subPath = path + "." + sub.Name
		}
		if err := cr.AddCommands(subPath, sub); err != nil {
			return err
		}
	}
	return nil
}
