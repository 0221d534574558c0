package main

import (
	"go-storefront-auth/app"
)

// @title           Storefront Auth API
// @version         1.0
// @description     Credential and token lifecycle service of the storefront backend.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
