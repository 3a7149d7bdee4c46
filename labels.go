package peoplecount

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Default model artifacts, located in the ml directory of the deployment
// root
const (
	ModelDir         = "ml"
	DefaultRKNNModel = "yolov8n.rknn"
	DefaultONNXModel = "yolov8n.onnx"
)

// ModelPath resolves the model file relative to the deployment root and
// checks it exists.  A missing file returns ErrModelNotFound.
func ModelPath(root, file string) (string, error) {

	path := file

	if !filepath.IsAbs(file) {
		path = filepath.Join(root, ModelDir, file)
	}

	if err := CheckModelFile(path); err != nil {
		return "", err
	}

	return path, nil
}

// CheckModelFile returns ErrModelNotFound if path is not a regular file
func CheckModelFile(path string) error {

	info, err := os.Stat(path)

	if err != nil {
		return errors.Wrapf(ErrModelNotFound, "%s: %v", path, err)
	}

	if info.IsDir() {
		return errors.Wrapf(ErrModelNotFound, "%s is a directory", path)
	}

	return nil
}

// LoadLabels reads the labels used to train the Model from the given text file.
// It should contain one label per line.
func LoadLabels(file string) ([]string, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, errors.Wrap(err, "error opening labels file")
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading labels file")
	}

	return labels, nil
}

// ClassIndex returns the class index of the named label, matched case
// insensitively
func ClassIndex(labels []string, name string) (int, error) {

	for i, l := range labels {
		if strings.EqualFold(l, strings.TrimSpace(name)) {
			return i, nil
		}
	}

	return -1, errors.Errorf("label %q not found in %d labels", name, len(labels))
}
