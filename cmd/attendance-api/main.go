package main

// @title Face Attendance API
// @version 1.0.0
// @description Class scheduling, face-matched attendance sessions and absence rollups
// @BasePath /api/v1
// @schemes http

func main() {
	Execute()
}
