package cmd

import (
	"fmt"
)

const banner = `
  _______            _    __          ___
 |__   __|          | |   \ \        / (_)
    | |_ __ __ _  __| | ___\ \  /\  / / _ _ __ ___
    | | '__/ _` + "`" + ` |/ _` + "`" + ` |/ _ \\ \/  \/ / | | '__/ _ \
    | | | | (_| | (_| |  __/ \  /\  /  | | | |  __/
    |_|_|  \__,_|\__,_|\___|  \/  \/   |_|_|  \___|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Trading Backend Client - Version %s\x1b[0m\n\n", Version)
}
