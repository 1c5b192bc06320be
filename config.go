// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DefaultDriver is the database/sql driver used when Config.Driver is unset.
const DefaultDriver = "mysql"

// Config holds the connection parameters for a DB. Host, User, Password and
// Name are required; there is no process-wide fallback for missing fields.
type Config struct {
	// Database server address, host or host:port (default port 3306).
	Host string
	// Database user.
	User string
	// Database password.
	Password string
	// Database (schema) name. Also scopes catalog introspection.
	Name string

	// Driver overrides the database/sql driver name. Defaults to "mysql".
	// The driver must accept go-sql-driver/mysql DSN syntax.
	Driver string
	// Params holds additional DSN parameters passed through to the driver.
	Params map[string]string
}

func (c Config) driver() string {
	if c.Driver == "" {
		return DefaultDriver
	}
	return c.Driver
}

func (c Config) validate() error {
	for _, f := range []struct {
		name, value string
	}{
		{"host", c.Host},
		{"user", c.User},
		{"password", c.Password},
		{"name", c.Name},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s not set", ErrMissingConfig, f.name)
		}
	}
	return nil
}

// DSN returns the data source name for the configuration, in
// go-sql-driver/mysql format.
func (c Config) DSN() string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = c.Host
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Name
	// Typed column values are fetched natively, not stringified.
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Collation = "utf8mb4_general_ci"
	// Client-side parameter interpolation, the equivalent of emulated
	// prepares. Named placeholders are compiled before reaching the driver,
	// so this only affects statements executed without preparation.
	mc.InterpolateParams = true
	for k, v := range c.Params {
		if mc.Params == nil {
			mc.Params = make(map[string]string)
		}
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}
