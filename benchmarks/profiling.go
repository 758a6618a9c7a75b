package benchmarks

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"runtime/pprof"
)

var (
	cpuprofile string
	memprofile string
)

// startProfiling starts the cpu profile when requested. The returned
// function stops it and writes the memory profile.
func startProfiling() (func(), error) {
	stops := make([]func(), 0)
	if cpuprofile != "" {
		cpuProfPath := path.Join(saveFile, cpuprofile)
		fmt.Println("Profiling CPU to ", cpuProfPath)
		if err := os.MkdirAll(saveFile, 0755); err != nil {
			return nil, err
		}
		f, err := os.Create(cpuProfPath)
		if err != nil {
			return nil, fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not start CPU profile: %w", err)
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}

	if memprofile != "" {
		memProfPath := path.Join(saveFile, memprofile)
		stops = append(stops, func() {
			fmt.Println("Profiling Memory to ", memProfPath)
			f, err := os.Create(memProfPath)
			if err != nil {
				fmt.Println("could not create memory profile: ", err)
				return
			}
			defer f.Close()
			runtime.GC() // get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Println("could not write memory profile: ", err)
			}
		})
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}, nil
}
