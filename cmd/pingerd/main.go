/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/prakash-gist/mod-ping/pkg/config"
	"github.com/prakash-gist/mod-ping/pkg/lifecycle"
	"github.com/prakash-gist/mod-ping/pkg/logger"
	"github.com/prakash-gist/mod-ping/pkg/natsbridge"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		logger.Fatal().Err(err).Msg("Fatal error")
	}
}

func run() error {
	configPath := flag.String("config", "/etc/mod-ping/pingerd.json", "Path to pingerd config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg natsbridge.ServiceConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	if err := lifecycle.InitializeLogger(logConfig); err != nil {
		return err
	}

	pingerLogger, err := lifecycle.CreateComponentLogger("pingerd", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	svc, err := natsbridge.NewService(ctx, &cfg, pingerLogger)
	if err != nil {
		return err
	}

	return lifecycle.Run(ctx, svc, pingerLogger)
}
