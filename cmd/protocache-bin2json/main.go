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

// protocache-bin2json converts a ProtoCache buffer back into protobuf-JSON
// (or, with -flat, protobuf wire format), the inverse of
// protocache-json2bin.
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
	input   = flag.String("input", "-", "ProtoCache input file, or - for stdin")
	output  = flag.String("output", "-", "JSON output file, or - for stdout")
	schema  = flag.String("schema", "", "compiled FileDescriptorSet (protoc -o / buf build -o)")
	root    = flag.String("root", "", "fully-qualified name of the root message type")
	gzipIn  = flag.Bool("compress", false, "input is gzip-compressed")
	flatOut = flag.Bool("flat", false, "write output as protobuf wire format instead of protobuf-JSON")
	batch   = flag.String("batch", "", "YAML manifest of {input,output,root} jobs; overrides -input/-output/-root")
)

type job struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Root   string `yaml:"root"`
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "protocache-bin2json:", err)
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

	raw, err := readAll(j.Input, *gzipIn)
	if err != nil {
		return err
	}

	msg := dynamicpb.NewMessage(md)
	if err := protocache.Deserialize(protocache.FromBytes(raw), msg.ProtoReflect()); err != nil {
		return fmt.Errorf("deserializing: %w", err)
	}

	var out []byte
	if *flatOut {
		out, err = proto.Marshal(msg)
	} else {
		out, err = protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	}
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return writeAll(j.Output, out)
}

func readAll(path string, gz bool) ([]byte, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if !gz {
		return io.ReadAll(r)
	}
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip input: %w", err)
	}
	defer gr.Close()
	return io.ReadAll(gr)
}

func writeAll(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
