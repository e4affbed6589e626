package main

// General API documentation for swaggo. Generate with `swag init -g cmd/shardd/docs.go`.
//
// @title           shardd API
// @version         1.0
// @description     HTTP API for layer-range shard acquisition and pipelined inference.
//
// @contact.name   shardd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
