// Package script builds motion plans from mock robot scripts, JSON command
// lists and YAML plan files.
package script

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/open-teleop/sequencer/pkg/motion"
	"gopkg.in/yaml.v3"
)

// Command types used by the JSON format
const (
	TypeVelocity = "VELOCITY"
	TypeWait     = "WAIT"
)

const number = `(-?(?:\d+(?:\.\d*)?|\.\d+))`

var (
	// cmd_vel(1.0, 0.5) / velocity(1.0, 0.5)
	velocityCallRe = regexp.MustCompile(`(?i)\b(?:cmd_vel|velocity)\s*\(\s*` + number + `\s*,\s*` + number)
	// wait(2) / sleep(2.0) / delay(1)
	waitCallRe = regexp.MustCompile(`(?i)\b(?:wait|sleep|delay)\s*\(\s*` + number)
	// <wait duration="2"/> / <sleep time="2" />
	waitTagRe = regexp.MustCompile(`(?i)<\s*(?:wait|sleep|delay)\b[^>]*?\b(?:duration|time|seconds)\s*=\s*["']?` + number)
	// linear="1.0" angular: 0.5, used on lines that mention vel/move/drive
	linearKeyRe  = regexp.MustCompile(`(?i)\b(?:linear(?:_x)?|v)\s*[=:]\s*["']?` + number)
	angularKeyRe = regexp.MustCompile(`(?i)\b(?:angular(?:_z)?|w)\s*[=:]\s*["']?` + number)
	motionWordRe = regexp.MustCompile(`(?i)vel|move|drive`)
	// any command call with a numeric-looking first argument
	callStartRe = regexp.MustCompile(`(?i)\b(cmd_vel|velocity|wait|sleep|delay)\s*\(\s*[-+.\d]`)
)

// Vector3 mirrors geometry_msgs/Vector3 in the JSON format.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Command is one entry of a JSON command list.
type Command struct {
	Type     string   `json:"type"`
	Linear   Vector3  `json:"linear"`
	Angular  Vector3  `json:"angular"`
	Duration *float64 `json:"duration,omitempty"`
}

// Parse builds a plan from a JSON command list or a mock robot script.
func Parse(input string) (motion.MotionPlan, error) {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "[") || (strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, `"commands"`)) {
		return ParseJSON([]byte(trimmed))
	}
	return ParseScript(trimmed)
}

// ParseFile loads a plan from disk. .yaml and .yml files use the YAML plan
// format; anything else goes through Parse.
func ParseFile(path string) (motion.MotionPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return motion.MotionPlan{}, fmt.Errorf("error reading plan file '%s': %w", path, err)
	}

	var plan motion.MotionPlan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		plan, err = ParseYAML(data)
	default:
		plan, err = Parse(string(data))
	}
	if err != nil {
		return motion.MotionPlan{}, fmt.Errorf("error parsing plan file '%s': %w", path, err)
	}
	return plan, nil
}

// ParseScript reads commands line by line, applying every call on a line in
// order. Comment lines and lines without commands are skipped; a command call
// whose arguments are not numbers is an error.
func ParseScript(input string) (motion.MotionPlan, error) {
	var b planBuilder

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}

		calls, err := scanCalls(line)
		if err != nil {
			return motion.MotionPlan{}, fmt.Errorf("line %d: %w", lineNo, err)
		}
		for _, c := range calls {
			if c.isWait {
				b.wait(c.hold)
			} else {
				b.velocity(c.cmd, 0)
			}
		}
		if len(calls) > 0 {
			continue
		}

		if motionWordRe.MatchString(line) {
			lm := linearKeyRe.FindStringSubmatch(line)
			am := angularKeyRe.FindStringSubmatch(line)
			if lm != nil && am != nil {
				linear, angular, err := parsePair(lm[1], am[1])
				if err != nil {
					return motion.MotionPlan{}, fmt.Errorf("line %d: %w", lineNo, err)
				}
				b.velocity(motion.VelocityCommand{Linear: linear, Angular: angular}, 0)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return motion.MotionPlan{}, fmt.Errorf("error reading script: %w", err)
	}

	return b.plan(), nil
}

// ParseJSON accepts a command array, {"commands": [...]} or a single command.
func ParseJSON(data []byte) (motion.MotionPlan, error) {
	var commands []Command

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &commands); err != nil {
			return motion.MotionPlan{}, fmt.Errorf("invalid JSON command list: %w", err)
		}
	} else {
		var wrapper struct {
			Commands []Command `json:"commands"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return motion.MotionPlan{}, fmt.Errorf("invalid JSON command list: %w", err)
		}
		commands = wrapper.Commands
		if commands == nil {
			var single Command
			if err := json.Unmarshal(data, &single); err != nil {
				return motion.MotionPlan{}, fmt.Errorf("invalid JSON command: %w", err)
			}
			commands = []Command{single}
		}
	}

	var b planBuilder
	for i, cmd := range commands {
		switch strings.ToUpper(cmd.Type) {
		case TypeVelocity:
			hold := 0.0
			if cmd.Duration != nil {
				hold = *cmd.Duration
			}
			b.velocity(motion.VelocityCommand{Linear: cmd.Linear.X, Angular: cmd.Angular.Z}, hold)
		case TypeWait:
			if cmd.Duration == nil {
				return motion.MotionPlan{}, fmt.Errorf("command %d: WAIT requires a duration", i+1)
			}
			b.wait(*cmd.Duration)
		default:
			return motion.MotionPlan{}, fmt.Errorf("command %d: unknown command type %q", i+1, cmd.Type)
		}
	}
	return b.plan(), nil
}

type yamlPlan struct {
	Steps []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Linear  float64 `yaml:"linear"`
	Angular float64 `yaml:"angular"`
	Hold    float64 `yaml:"hold"`
}

// ParseYAML reads a plan of the form `steps: [{linear, angular, hold}]`.
func ParseYAML(data []byte) (motion.MotionPlan, error) {
	var doc yamlPlan
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return motion.MotionPlan{}, fmt.Errorf("invalid YAML plan: %w", err)
	}

	steps := make([]motion.TimedStep, 0, len(doc.Steps))
	for _, s := range doc.Steps {
		steps = append(steps, motion.Step(s.Linear, s.Angular, s.Hold))
	}
	return motion.NewPlan(steps...), nil
}

// planBuilder folds velocity and wait commands into timed steps.
type planBuilder struct {
	steps []motion.TimedStep
}

func (b *planBuilder) velocity(cmd motion.VelocityCommand, hold float64) {
	b.steps = append(b.steps, motion.TimedStep{Command: cmd, Hold: hold})
}

// wait extends the previous step's hold. A wait before any velocity command
// holds the robot stopped.
func (b *planBuilder) wait(d float64) {
	if len(b.steps) == 0 {
		b.steps = append(b.steps, motion.TimedStep{Command: motion.Stop, Hold: d})
		return
	}
	b.steps[len(b.steps)-1].Hold += d
}

func (b *planBuilder) plan() motion.MotionPlan {
	return motion.NewPlan(b.steps...)
}

// call is one velocity or wait command found on a script line.
type call struct {
	pos    int
	isWait bool
	cmd    motion.VelocityCommand
	hold   float64
}

// scanCalls returns the calls on line in source order.
func scanCalls(line string) ([]call, error) {
	var calls []call

	for _, m := range velocityCallRe.FindAllStringSubmatchIndex(line, -1) {
		linear, angular, err := parsePair(line[m[2]:m[3]], line[m[4]:m[5]])
		if err != nil {
			return nil, err
		}
		calls = append(calls, call{pos: m[0], cmd: motion.VelocityCommand{Linear: linear, Angular: angular}})
	}
	for _, re := range []*regexp.Regexp{waitCallRe, waitTagRe} {
		for _, m := range re.FindAllStringSubmatchIndex(line, -1) {
			d, err := strconv.ParseFloat(line[m[2]:m[3]], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid duration %q: %w", line[m[2]:m[3]], err)
			}
			calls = append(calls, call{pos: m[0], isWait: true, hold: d})
		}
	}

	// A call that starts like a command but did not match above is malformed.
	for _, m := range callStartRe.FindAllStringSubmatchIndex(line, -1) {
		if !slices.ContainsFunc(calls, func(c call) bool { return c.pos == m[0] }) {
			return nil, fmt.Errorf("malformed %s call %q", line[m[2]:m[3]], line[m[0]:])
		}
	}

	slices.SortFunc(calls, func(a, b call) int { return a.pos - b.pos })
	return calls, nil
}

func stripComment(line string) string {
	if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "<!--") {
		return ""
	}
	for _, marker := range []string{" //", "\t//", " #", "\t#"} {
		if idx := strings.Index(line, marker); idx >= 0 {
			line = line[:idx]
		}
	}
	return strings.TrimSpace(line)
}

func parsePair(a, b string) (float64, float64, error) {
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q: %w", a, err)
	}
	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q: %w", b, err)
	}
	return x, y, nil
}
