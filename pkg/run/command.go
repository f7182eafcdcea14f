/*
   NVMRec - flash audio recorder
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of NVMRec.

   NVMRec is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   NVMRec is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with NVMRec. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigEnv names the environment variable pointing to an optional config
// file. Keys in that file are the long flag names, e.g. `row-size: 64`.
const ConfigEnv = "NVMREC_CONFIG"

const (
	prologueHeader = ""
	epilogueHeader = `
Notes:

`
)

/*
The package initializer sets up logging based on logrus, for the daemon as
well as for the client commands. The following environment variables can be
used to configure logging:

	LOG_FORMAT		set to `json` for JSON logging
	LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
	LOG_METHODS		set to non-empty for including methods in log
	LOG_LEVEL		`panic`, `fatal`, `error`, `warn`, `info`, `debug`, `trace`
*/
func init() {

	log.SetOutput(os.Stdout)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else if os.Getenv("LOG_FORCE_COLORS") != "" {
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	}

	if os.Getenv("LOG_METHODS") != "" {
		log.SetReportCaller(true)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		l, err := log.ParseLevel(level)
		if err != nil {
			log.Errorf("invalid log level: '%s'; valid levels are: panic, "+
				"fatal, error, warn, info, debug, trace", level)
		} else {
			log.SetLevel(l)
		}
	}
}

// DieOnError exits the running process if e is not nil. The error gets logged.
func DieOnError(e error) {
	if e != nil {
		fmt.Printf("%v\n", e)
		os.Exit(1)
	}
}

// Die exits the running process, while logging the given message.
func Die(msg string, params ...interface{}) {
	fmt.Printf(msg, params...)
	os.Exit(1)
}

// GetUserConfirmation asks the user a yes/no question on the terminal.
func GetUserConfirmation(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	var res string
	fmt.Scanln(&res)
	return strings.ToLower(strings.TrimSpace(res)) == "y"
}

/*
NewCommand creates a base command instance, wrapping a new Cobra command.
The exec function is invoked when the command's Execute method is called.
Each command keeps its settings in its own Viper instance, so that several
commands can be set up within the same process.
*/
func NewCommand(use, short, long, helpPrologue, helpEpilogue string,
	exec func() error) *Command {

	ret := &Command{
		cmd: &cobra.Command{
			Use:                   use,
			Short:                 short,
			Long:                  long,
			SilenceErrors:         true,
			SilenceUsage:          true,
			DisableFlagsInUseLine: true,
		},
		viper:        viper.New(),
		settings:     map[string]*setting{},
		helpPrologue: helpPrologue,
		helpEpilogue: helpEpilogue,
	}

	ret.cmd.RunE = func(*cobra.Command, []string) error {
		if err := ret.readConfig(); err != nil {
			return err
		}
		return exec()
	}
	ret.helpFunc = ret.cmd.HelpFunc()
	ret.cmd.SetHelpFunc(ret.help)

	return ret
}

/*
Command is a wrapper around Cobra & Viper. A setting can come from a command
line flag, an environment variable, or the config file named by NVMREC_CONFIG,
in this order of precedence. For required settings, the error message names
both flag and environment variable.
*/
type Command struct {
	cmd      *cobra.Command
	viper    *viper.Viper
	settings map[string]*setting
	//
	Args []string
	//
	helpPrologue string
	helpEpilogue string
	helpFunc     func(*cobra.Command, []string)
}

func (c *Command) help(cmd *cobra.Command, args []string) {
	if c.helpPrologue != "" {
		fmt.Fprintln(cmd.OutOrStdout(), prologueHeader+c.helpPrologue)
	}
	if c.helpFunc != nil {
		c.helpFunc(cmd, args)
	}
	if c.helpEpilogue != "" {
		fmt.Fprintln(cmd.OutOrStdout(), epilogueHeader+c.helpEpilogue)
	} else {
		fmt.Fprintln(cmd.OutOrStdout())
	}
}

/*
Execute invokes the exec function that was set on this command when it was
created. If args is not nil, it overrides os.Args.
*/
func (c *Command) Execute(args []string) error {
	if args != nil {
		c.cmd.SetArgs(args)
	}
	return c.cmd.Execute()
}

func (c *Command) readConfig() error {

	file := os.Getenv(ConfigEnv)
	if file == "" {
		return nil
	}

	log.WithField("file", file).Debug("reading config")
	c.viper.SetConfigFile(file)
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("cannot read config file %s: %v", file, err)
	}
	return nil
}

/*
AddSetting adds a setting to this command. Target is a pointer to the
receiver to which the setting should be bound. Flag specifies the long
(double-dash) command line flag for the setting, short its short
(single-dash) version, and env the name of the environment variable that may
carry this setting. def is a default value for the setting. When set to nil,
the default value will be the zero value of the setting's type. help carries
online help info about this setting, and required specifies whether this is
a mandatory setting. Supported types are string, bool, int, the unsigned
integer types, and float64.
*/
func (c *Command) AddSetting(target interface{}, flag, short, env string,
	def interface{}, help string, required bool) {

	s := &setting{flag: flag, env: env, required: required, target: target}
	c.settings[flag] = s

	t, name, err := s.typeAndName()
	DieOnError(err)

	log.Tracef("add setting: flag=%s, env=%s, type=%s", flag, env, t)

	if _, err := getterFor(c.viper, name); err != nil {
		Die("setting '%s' is of unsupported type: %v\n", flag, err)
	}

	defVal := reflect.Zero(t)
	if required {
		if def != nil {
			Die("required setting '%s' does not take a default value\n", flag)
		}
	} else if def != nil {
		if !reflect.TypeOf(def).ConvertibleTo(t) {
			Die("default value for setting '%s' has incorrect type\n", flag)
		}
		defVal = reflect.ValueOf(def).Convert(t)
	}

	flags := c.cmd.Flags()
	method, err := pflagMethodFor(flags, name)
	if err != nil {
		Die("setting '%s' is of unsupported type: %v\n", flag, err)
	}

	if env != "" {
		help = fmt.Sprintf("%s (%s)", help, env)
	}

	method.Call([]reflect.Value{
		reflect.ValueOf(target),
		reflect.ValueOf(flag),
		reflect.ValueOf(short),
		defVal,
		reflect.ValueOf(help),
	})

	c.viper.BindPFlag(flag, flags.Lookup(flag))
	if env != "" {
		c.viper.BindEnv(flag, env)
	}
}

/*
ParseSettings handles all settings that have been added thus far via the
AddSetting method. Afterwards, setting values are available in the variables
to which they were bound. This should be called in the exec function that
was set on this command when it was created, before any references to
variables that are bound to settings.
*/
func (c *Command) ParseSettings() {
	for _, s := range c.settings {
		DieOnError(s.resolve(c.viper))
	}
	c.Args = c.cmd.Flags().Args()
}

type setting struct {
	flag     string
	env      string
	required bool
	target   interface{}
}

// typeAndName returns the setting's type and the name used for it by the
// Viper getters and pflag methods, e.g. Uint32.
func (s *setting) typeAndName() (reflect.Type, string, error) {

	typ := reflect.TypeOf(s.target)
	if typ.Kind() != reflect.Ptr {
		return nil, "", fmt.Errorf(
			"target for setting '%s' is not a pointer", s.flag)
	}

	elem := typ.Elem()
	name := elem.Name()
	if name == "" {
		return nil, "", fmt.Errorf(
			"setting '%s' has unnamed type %s", s.flag, elem)
	}

	return elem, strings.ToUpper(name[:1]) + name[1:], nil
}

/*
resolve looks up the setting's value in v and places it in the bound
variable. Viper knows about values from flag, env, and config file, but
only values given by flag have already been placed in the variable by
pflag, so we always set from what Viper returns.
*/
func (s *setting) resolve(v *viper.Viper) error {

	t, name, err := s.typeAndName()
	if err != nil {
		return err
	}

	getter, err := getterFor(v, name)
	if err != nil {
		return err
	}

	val := getter.Call([]reflect.Value{reflect.ValueOf(s.flag)})[0]
	log.WithFields(log.Fields{
		"flag":    s.flag,
		"value":   val,
		"default": !v.IsSet(s.flag),
	}).Trace("setting")

	if s.required && val.Interface() == reflect.Zero(t).Interface() {
		msg := fmt.Sprintf(
			"you need to specify the --%s command line flag", s.flag)
		if s.env != "" {
			msg = fmt.Sprintf("%s or the %s environment variable", msg, s.env)
		}
		return fmt.Errorf("%s", msg)
	}

	reflect.ValueOf(s.target).Elem().Set(val)
	return nil
}

func getterFor(v *viper.Viper, name string) (reflect.Value, error) {
	method := fmt.Sprintf("Get%s", name)
	ret := reflect.ValueOf(v).MethodByName(method)
	if ret.Kind() != reflect.Func {
		return ret, fmt.Errorf("no Viper getter %s", method)
	}
	return ret, nil
}

func pflagMethodFor(f *pflag.FlagSet, name string) (reflect.Value, error) {
	method := fmt.Sprintf("%sVarP", name)
	ret := reflect.ValueOf(f).MethodByName(method)
	if ret.Kind() != reflect.Func {
		return ret, fmt.Errorf("no pflag method %s", method)
	}
	return ret, nil
}
