/*
go-peoplecount estimates how many people are visible in a video file.  It runs
a YOLO object detector on a subset of the video frames, filters the detections
down to plausible "person" boxes and reduces the per frame counts into a single
number that is robust to detector misses and single frame spikes.

The detector itself is pluggable.  Backends are provided for the Rockchip NPU
via go-rknnlite (subpackage rknn) and for the CPU via ONNX Runtime (subpackage
onnx).  Tests and other callers can supply any type implementing Detector.

See example/peoplecount for a command line tool and HTTP service built on
the package.
*/
package peoplecount
