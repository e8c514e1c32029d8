package cmd

import (
	"fmt"
	"io"
)

const banner = `
  ___                _                   
 |_ _|_ __ ___  _ __ | | _____  ___ _ __  
  | || '__/ _ \| '_ \| |/ / _ \/ _ \ '_ \ 
  | || | | (_) | | | |   <  __/  __/ |_) |
 |___|_|  \___/|_| |_|_|\_\___|\___| .__/ 
                                   |_|    
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Password Vault - Version %s\x1b[0m\n\n", Version)
}
