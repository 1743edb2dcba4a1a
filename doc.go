/*
Package sheetwatch watches a set of Google Sheets worksheets for changes.

sheetwatch can be used from the command line but is really intended to be run from a cron
job: each run fetches the current contents of the watched worksheets, diffs them against
the snapshots recorded on the previous run, reports added, removed and changed rows and
records the new snapshots.

sheetwatch supports the following commands:

  - authorise, to authorise the application to read the watched worksheets
  - watch, to fetch the watched worksheets and report changes since the previous run
  - get, to download a worksheet as a TSV file
  - version, to display the application version
*/
package sheetwatch
