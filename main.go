package main

import "github.com/open-zaak/open-zaak/backend/go-services/cmd"

func main() {
	cmd.Execute()
}
