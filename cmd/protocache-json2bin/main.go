// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// protocache-json2bin converts a protobuf-JSON document into a ProtoCache
// buffer, using a compiled FileDescriptorSet to resolve the root message
// type and drive the schema-aware bridge.
package main

import (
	"compress/gzip"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/protocache-go/protocache"
	"github.com/protocache-go/protocache/internal/xschema"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"gopkg.in/yaml.v3"
)

var (
	input    = flag.String("input", "-", "JSON input file, or - for stdin")
	output   = flag.String("output", "-", "ProtoCache output file, or - for stdout")
	schema   = flag.String("schema", "", "compiled FileDescriptorSet (protoc -o / buf build -o)")
	root     = flag.String("root", "", "fully-qualified name of the root message type")
	compress = flag.Bool("compress", false, "gzip the output buffer")
	flatIn   = flag.Bool("flat", false, "read input as protobuf wire format instead of protobuf-JSON")
	batch    = flag.String("batch", "", "YAML manifest of {input,output,root} jobs; overrides -input/-output/-root")
)

// job is one unit of work, either built from the single-job flags or read
// from a -batch manifest.
type job struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Root   string `yaml:"root"`
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "protocache-json2bin:", err)
		os.Exit(1)
	}
}

func run() error {
	if *schema == "" {
		return fmt.Errorf("-schema is required")
	}
	files, err := loadSchema(*schema)
	if err != nil {
		return err
	}

	jobs, err := loadJobs()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if err := runJob(files, j); err != nil {
			return fmt.Errorf("%s: %w", j.Input, err)
		}
	}
	return nil
}

func loadJobs() ([]job, error) {
	if *batch == "" {
		if *root == "" {
			return nil, fmt.Errorf("-root is required (or use -batch)")
		}
		return []job{{Input: *input, Output: *output, Root: *root}}, nil
	}
	raw, err := os.ReadFile(*batch)
	if err != nil {
		return nil, fmt.Errorf("reading batch manifest: %w", err)
	}
	var jobs []job
	if err := yaml.Unmarshal(raw, &jobs); err != nil {
		return nil, fmt.Errorf("parsing batch manifest: %w", err)
	}
	return jobs, nil
}

func loadSchema(path string) (*protoregistry.Files, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("parsing FileDescriptorSet: %w", err)
	}
	return protodesc.NewFiles(&set)
}

func runJob(files *protoregistry.Files, j job) error {
	d, err := files.FindDescriptorByName(protoreflect.FullName(j.Root))
	if err != nil {
		return fmt.Errorf("looking up root message %s: %w", j.Root, err)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return fmt.Errorf("%s is not a message type", j.Root)
	}
	if _, err := xschema.FromFileDescriptor(md.ParentFile()); err != nil {
		return fmt.Errorf("validating schema: %w", err)
	}

	raw, err := readAll(j.Input)
	if err != nil {
		return err
	}
	msg := dynamicpb.NewMessage(md)
	if *flatIn {
		if err := proto.Unmarshal(raw, msg); err != nil {
			return fmt.Errorf("parsing protobuf wire input: %w", err)
		}
	} else if err := protojson.Unmarshal(raw, msg); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	data, err := protocache.Serialize(msg.ProtoReflect())
	if err != nil {
		return fmt.Errorf("serializing: %w", err)
	}
	return writeAll(j.Output, data.Bytes(), *compress)
}

func readAll(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeAll(path string, data []byte, gz bool) error {
	w := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if !gz {
		_, err := w.Write(data)
		return err
	}
	gw := gzip.NewWriter(w)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}
