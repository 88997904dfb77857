// Package config loads supervision profiles for prockit.
//
// A profile describes how to run and stop one child process: command line,
// environment, redirections, input, stop escalation, and deadline. Profiles
// are loaded from a YAML file with .env and environment variable overlays
// and resolve into process.Options.
//
//	profiles:
//	  transcoder:
//	    command: ["ffmpeg", "-i", "rtsp://cam/1", "out.m3u8"]
//	    redirect:
//	      err: stdout
//	    stop:
//	      - action: terminate
//	        timeout: 5s
//	      - action: kill
//	        timeout: 2s
//	    timeout: 10m
package config
