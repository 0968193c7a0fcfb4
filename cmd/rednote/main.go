// Command rednote extracts notes from Xiaohongshu and replays interactions
// through a real Chrome session.
package main

func main() {
	Execute()
}
