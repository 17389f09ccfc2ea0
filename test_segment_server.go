package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// SegmentAck is the response returned to the forwarding client.
type SegmentAck struct {
	SegmentID  string    `json:"segment_id"`
	StreamID   uint32    `json:"stream_id"`
	Status     string    `json:"status"`
	AudioBytes int       `json:"audio_bytes"`
	ReceivedAt time.Time `json:"received_at"`
}

func segmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	segmentID := r.FormValue("segment_id")
	streamID := r.FormValue("stream_id")
	streamLabel := r.FormValue("stream_label")
	sampleRate := r.FormValue("sample_rate")
	startTimeMS := r.FormValue("start_time_ms")
	endTimeMS := r.FormValue("end_time_ms")
	durationMS := r.FormValue("duration_ms")
	avgProbability := r.FormValue("average_probability")
	confidence := r.FormValue("confidence")

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Error getting audio part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio part", http.StatusInternalServerError)
		return
	}

	log.Printf("🎙️ SEGMENT RECEIVED: %s", segmentID)
	log.Printf("  stream: %s (%s), sample_rate: %s Hz", streamID, streamLabel, sampleRate)
	log.Printf("  span: %s ms -> %s ms (%s ms)", startTimeMS, endTimeMS, durationMS)
	log.Printf("  avg_probability: %s, confidence: %s", avgProbability, confidence)
	log.Printf("  audio: %s, %d bytes (%s)", header.Filename, len(audioData), header.Header.Get("Content-Type"))

	ack := SegmentAck{
		SegmentID:  segmentID,
		StreamID:   parseUint32(streamID),
		Status:     "accepted",
		AudioBytes: len(audioData),
		ReceivedAt: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ack)
}

func parseUint32(s string) uint32 {
	var val uint32
	fmt.Sscanf(s, "%d", &val)
	return val
}

func main() {
	http.HandleFunc("/segments", segmentsHandler)

	port := ":9000"
	log.Printf("🚀 Test Segment Server starting on port %s", port)
	log.Printf("📡 Endpoint: http://localhost%s/segments", port)
	log.Println("💡 Update your config to use: http://localhost:9000/segments")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
