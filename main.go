package main

import (
	"log"

	"github.com/camden-git/studiobackend/cli"
	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cli.Execute()
}
