package main

import (
	"fmt"

	"github.com/ardanlabs/conf"
)

// slotCmd contains required arguments for slot and export command execution
type slotCmd struct {
	slot            string
	weekday         string
	destinationFile string
}

// parseSlotCmd using conf.Args attempts to load slotCmd, returns error if any arguments are not present.
// export takes the destination file before the optional weekday
func parseSlotCmd(command string, args conf.Args) (*slotCmd, error) {
	slot := args.Num(1)
	if len(slot) < 1 {
		return nil, fmt.Errorf("expected slot in HH:MM format with command %s", command)
	}
	if command != "export" {
		return &slotCmd{
			slot:    slot,
			weekday: args.Num(2),
		}, nil
	}
	destinationFile := args.Num(2)
	if len(destinationFile) < 1 {
		return nil, fmt.Errorf("expected destination file with command export")
	}
	return &slotCmd{
		slot:            slot,
		weekday:         args.Num(3),
		destinationFile: destinationFile,
	}, nil
}
