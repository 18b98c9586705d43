//go:build astiav

package main

import (
	"github.com/user/vidsample/pkg/adapters/astiavbackend"
	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/adapters/smartbackend"
	"github.com/user/vidsample/pkg/config"
)

func init() {
	backendHooks = append(backendHooks, func(cfg config.Config) {
		smartbackend.Register(smartbackend.BackendAstiav, &astiavbackend.Opener{
			Scaler: pixconv.Scaler(cfg.Decoder.Scaler),
		})
	})
}
