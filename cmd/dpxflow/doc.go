// Command dpxflow drives the DPX preservation pipeline: it assesses incoming
// scans, encodes them to FFV1 Matroska with RAWcooked, audits the results and
// files every sequence into exactly one stage directory.
package main
