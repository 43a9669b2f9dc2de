package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ale/aos-ssh-gateway/pkg/inventory"
)

var addDeviceFlags struct {
	user        string
	password    string
	keyPath     string
	port        int
	jumpSSHName string
	tags        []string
}

var addDeviceCmd = &cobra.Command{
	Use:   "add-device <host>",
	Short: "Add or replace a device in the inventory file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := addDeviceFlags.password
		if password == "" && addDeviceFlags.keyPath == "" {
			read, err := readPasswordInteractive()
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = read
		}

		inv, err := inventory.Load(app.hostFile)
		if err != nil {
			return fmt.Errorf("loading inventory: %w", err)
		}

		dev := inventory.Device{
			Host:        args[0],
			User:        addDeviceFlags.user,
			Password:    password,
			KeyPath:     addDeviceFlags.keyPath,
			Port:        addDeviceFlags.port,
			JumpSSHName: addDeviceFlags.jumpSSHName,
			Tags:        addDeviceFlags.tags,
		}
		if err := inv.Upsert(dev); err != nil {
			return fmt.Errorf("saving device: %w", err)
		}
		fmt.Printf("saved device %s\n", dev.Host)
		return nil
	},
}

// readPasswordInteractive prompts on stdout and reads a password from stdin
// without echoing it, the same affordance the FastAPI original's seeding CLI
// offers an operator adding a device by hand.
func readPasswordInteractive() (string, error) {
	fmt.Print("Password: ")
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func init() {
	addDeviceCmd.Flags().StringVar(&addDeviceFlags.user, "user", "", "SSH username")
	addDeviceCmd.Flags().StringVar(&addDeviceFlags.password, "password", "", "SSH password (prompted interactively if omitted and no key path is given)")
	addDeviceCmd.Flags().StringVar(&addDeviceFlags.keyPath, "key-path", "", "Path to an SSH private key file")
	addDeviceCmd.Flags().IntVar(&addDeviceFlags.port, "port", 22, "SSH port")
	addDeviceCmd.Flags().StringVar(&addDeviceFlags.jumpSSHName, "jump-ssh-name", "", "Name of the jump host to tunnel through, if any")
	addDeviceCmd.Flags().StringSliceVar(&addDeviceFlags.tags, "tag", nil, "Tag to attach to the device (repeatable)")
	addDeviceCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(addDeviceCmd)
}
