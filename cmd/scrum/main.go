// Command scrum turns requirement outlines into Scrum backlogs.
package main

import (
	"os"

	"github.com/tec-more/odoo-plugins/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
