package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"authbase/internal/utils"
	"authbase/internal/utils/logger"
)

// Interactive helper for operators: hash a password for direct DB insertion
// (e.g. recovering the system account) or verify a hash.
func main() {
	var log = logger.New("helper")
	log.Info("Starting password helper CLI")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Enter 'h' to hash a password, 'v' to verify, or 'q' to quit: ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		if choice == "q" {
			log.Info("Exiting helper CLI")
			break
		}

		switch choice {
		case "h":
			fmt.Print("Enter the password: ")
			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(input)

			if problems := utils.CheckPasswordStrength(input); len(problems) > 0 {
				for _, p := range problems {
					log.Warn("%s", p)
				}
				continue
			}
			hash, err := utils.HashPassword(input)
			if err != nil {
				log.Error("Hashing failed", err)
				continue
			}
			log.Success("Hash: %s", hash)
		case "v":
			fmt.Print("Enter the hash: ")
			hash, _ := reader.ReadString('\n')
			fmt.Print("Enter the password: ")
			password, _ := reader.ReadString('\n')

			if utils.CheckPassword(strings.TrimSpace(password), strings.TrimSpace(hash)) {
				log.Success("Password matches the hash")
			} else {
				log.Warn("Password does NOT match the hash")
			}
		default:
			log.Warn("Invalid choice. Please enter 'h', 'v', or 'q'.")
		}
	}
}
