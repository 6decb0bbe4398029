package main

import (
	"github.com/curbfare/fulfillment/internal/app"
	"github.com/curbfare/fulfillment/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
