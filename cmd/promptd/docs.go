package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/promptd/docs.go -o docs`.
//
// @title           promptd API
// @version         1.0
// @description     HTTP API for local model downloads, selection and streaming inference.
//
// @contact.name   promptd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
